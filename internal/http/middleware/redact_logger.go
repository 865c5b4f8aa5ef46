// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger. Lead submissions
// carry names, emails and phone numbers, so nothing request-derived reaches
// the logs unscrubbed:
//
//   - bodies are never logged
//   - emails, phone numbers and UUIDs in query strings and header values are
//     replaced with typed placeholders
//   - Authorization, Cookie, Set-Cookie and Idempotency-Key are masked
//     entirely, plus any headers named in RedactOptions.MaskHeaders
//
// It also attaches the request-scoped logger returned by LoggerFrom.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders names extra headers (case-insensitive) whose values are
	// replaced with "[REDACTED]".
	MaskHeaders []string
	// LogHeaders includes scrubbed request headers in the access log.
	LogHeaders bool
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+(?:@|%40)[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only phone pattern so hex segments of UUIDs never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact scrubs identifiers from s. UUIDs go first so the looser phone
// pattern cannot eat their digit groups.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// RedactingLogger returns the access-log middleware. Level follows outcome:
// error for 5xx or collected gin errors, warn for 4xx, info otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range append([]string{HeaderIdempotencyKey}, opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		setLogger(c, l)

		var safeHeaders map[string]string
		if opts.LogHeaders {
			safeHeaders = make(map[string]string, len(c.Request.Header))
			for k, vv := range c.Request.Header {
				if _, ok := maskHeaders[strings.ToLower(k)]; ok {
					safeHeaders[k] = "[REDACTED]"
					continue
				}
				safeHeaders[k] = Redact(strings.Join(vv, ", "))
			}
		}
		safeQuery := Redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		c.Next()

		status := c.Writer.Status()
		// Re-read: RequireAgent may have enriched the logger with agent_id.
		lg := LoggerFrom(c)

		ev := lg.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", Redact(c.Errors.String()))
			}
		case status >= 400:
			ev = lg.Warn()
		}

		ev = ev.
			Str("query", safeQuery).
			Str("user_agent", Redact(c.Request.UserAgent())).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start))
		if safeHeaders != nil {
			ev = ev.Interface("headers", safeHeaders)
		}
		ev.Msg("http_request")
	}
}
