// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for public lead submission. A
// client (typically a web form with flaky connectivity) may resend the same
// submission with an Idempotency-Key header; the key is scoped to the client
// IP so unrelated clients cannot collide or probe each other's keys.
//
// The middleware validates the header, stashes key and scope, and when the
// lookup finds a live record stashes that record too. Replays skip the rate
// limiter; the handler answers them from the stashed record, so a record
// purged after this check cannot turn a rate-exempt request into an insert.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemScope  = "idem.scope"
	ctxKeyIdemReplay = "idem.replay" // *domain.Idempotency found by the lookup
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

// GetIdempotencyKey returns the validated key and its scope.
func GetIdempotencyKey(c *gin.Context) (key, scope string, ok bool) {
	k, _ := c.Get(ctxKeyIdemKey)
	s, _ := c.Get(ctxKeyIdemScope)
	key, scope = asString(k), asString(s)
	return key, scope, key != "" && scope != ""
}

// ReplayRecord returns the live record found for this request's key.
func ReplayRecord(c *gin.Context) (*domain.Idempotency, bool) {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return nil, false
	}
	rec, _ := v.(*domain.Idempotency)
	return rec, rec != nil
}

// IsReplay reports whether a live record exists for this request's key.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayRecord(c)
	return ok
}

// IdempotencyScope derives the scope for a request: the client IP.
func IdempotencyScope(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup returns the live record for (scope, key) at now, or nil.
// Errors are treated as "no record" so a lookup failure never blocks a
// first-time submission.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error)

// IdempotencyValidator validates and stashes the Idempotency-Key header.
//
//   - header absent: no-op
//   - header invalid: 400 {"code": "bad_idempotency_key"}
//   - live record found: record stashed, rate-bypass flag set
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		scope := IdempotencyScope(c)
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, scope)

		if lookup != nil {
			if rec, err := lookup(c.Request.Context(), scope, key, time.Now().UTC()); err == nil && rec != nil {
				c.Set(ctxKeyIdemReplay, rec)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
