// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with per-key
// buckets and opportunistic garbage collection. Two instances are wired by
// the router: a general limiter keyed by agent or client IP, and a strict
// limiter on the public submission endpoint (10 per hour per IP by default).
//
// The limiter is process-local. Behind several replicas the effective limit
// is multiplied by the replica count.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByAgentOrIP prefers the authenticated agent id and falls back to the
// client IP. Keys are prefixed so the namespaces cannot collide.
func KeyByAgentOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(ctxKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "agent:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys buckets by client IP only.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter.
// It is safe for concurrent use.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a limiter refilling rps tokens per second.
// burst values <= 0 are coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return newRateLimiter(rate.Limit(rps), burst, keyFn, 10*time.Minute)
}

// NewWindowLimiter allows n requests per window per key, refilled evenly
// (e.g. 10 per hour refills one token every 6 minutes). Idle buckets are
// kept for a full window so a client cannot reset its budget by pausing.
func NewWindowLimiter(n int, window time.Duration, keyFn keyFunc) *RateLimiter {
	if n <= 0 {
		n = 1
	}
	return newRateLimiter(rate.Every(window/time.Duration(n)), n, keyFn, window)
}

func newRateLimiter(limit rate.Limit, burst int, keyFn keyFunc, ttl time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      ttl,
	}
}

// getVisitor returns (and touches) the limiter for key, creating it if absent.
// Every ~5000 lookups idle entries are evicted; eviction runs before the
// requested entry is touched so a stale bucket can be dropped too.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// retryAfter is the whole number of seconds until one token is available.
func (rl *RateLimiter) retryAfter() int {
	if rl.limit <= 0 || rl.limit == rate.Inf {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(rl.limit))))
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which is served without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware. Rejected requests receive
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds>
//	{"request_id": "...", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
