// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication for agent routes.
// RequireAgent verifies "Authorization: Bearer <token>" through an
// Authenticator and stores the resulting identity in the Gin context;
// requests without a valid token stop here with 401.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

const (
	// ctxKeyAgent holds the authenticated domain.AgentIdentity.
	ctxKeyAgent = "agent"
	// ctxKeyUserID holds the agent id as a decimal string for keying and logs.
	ctxKeyUserID = "userID"
)

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.AgentIdentity, error)
}

// RequireAgent rejects requests that do not carry a valid bearer token.
func RequireAgent(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		id, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ctxKeyAgent, id)
		c.Set(ctxKeyUserID, strconv.FormatUint(uint64(id.ID), 10))
		setLogger(c, LoggerFrom(c).With().Uint("agent_id", id.ID).Logger())

		c.Next()
	}
}

// AgentFrom returns the identity stored by RequireAgent.
func AgentFrom(c *gin.Context) (domain.AgentIdentity, bool) {
	v, ok := c.Get(ctxKeyAgent)
	if !ok {
		return domain.AgentIdentity{}, false
	}
	id, ok := v.(domain.AgentIdentity)
	return id, ok && id.ID != 0
}

// bearerToken extracts the token from an Authorization header value.
// The scheme is case-insensitive.
func bearerToken(h string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="leads"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
