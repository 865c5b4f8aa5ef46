// Package httpapi wires the HTTP transport (Gin) to the lead services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, authentication and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-lead-intake/docs" // swagger spec registration
	"github.com/tbourn/go-lead-intake/internal/config"
	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/events"
	"github.com/tbourn/go-lead-intake/internal/http/handlers"
	"github.com/tbourn/go-lead-intake/internal/http/middleware"
	"github.com/tbourn/go-lead-intake/internal/repo"
	"github.com/tbourn/go-lead-intake/internal/services"
)

// storeShim adapts the repository free functions to the repo interfaces the
// services expect (LeadRepo, ClaimRepo, AgentRepo).
type storeShim struct{}

func (storeShim) InsertLead(ctx context.Context, db *gorm.DB, p domain.LeadPayload) (*domain.Lead, error) {
	return repo.InsertLead(ctx, db, p)
}

func (storeShim) CountUnclaimed(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountUnclaimed(ctx, db)
}

func (storeShim) ListUnclaimedPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lead, error) {
	return repo.ListUnclaimedPage(ctx, db, offset, limit)
}

func (storeShim) ListClaimedBy(ctx context.Context, db *gorm.DB, agentID uint) ([]domain.Lead, error) {
	return repo.ListClaimedBy(ctx, db, agentID)
}

func (storeShim) PoolStats(ctx context.Context, db *gorm.DB) (int64, uint, error) {
	return repo.PoolStats(ctx, db)
}

func (storeShim) ClaimedStats(ctx context.Context, db *gorm.DB, agentID uint) (int64, *time.Time, error) {
	return repo.ClaimedStats(ctx, db, agentID)
}

func (storeShim) ClaimLead(ctx context.Context, db *gorm.DB, id, agentID uint, now time.Time) (*domain.Lead, error) {
	return repo.ClaimLead(ctx, db, id, agentID, now)
}

func (storeShim) CreateAgent(ctx context.Context, db *gorm.DB, name, email, hash string) (*domain.Agent, error) {
	return repo.CreateAgent(ctx, db, name, email, hash)
}

func (storeShim) GetAgentByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Agent, error) {
	return repo.GetAgentByEmail(ctx, db, email)
}

func (storeShim) AgentExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return repo.AgentExists(ctx, db, id)
}

// idemStore backs handlers.IdempotencyStore with the idempotency table.
type idemStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (s idemStore) Lookup(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, scope, key, now)
}

func (s idemStore) Remember(ctx context.Context, scope, key string, leadID uint, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, leadID, status, s.ttl)
	return err
}

// replay adapts Lookup to middleware.IdempotencyLookup: a miss is (nil, nil).
func (s idemStore) replay(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := s.Lookup(ctx, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, security headers and gzip
//
// Per route group: the public submission runs the idempotency validator
// before its per-IP window limiter so replays are not counted; agent routes
// authenticate before the general limiter so buckets are keyed per agent.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, pub events.Publisher, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	if pub == nil {
		pub = events.NopPublisher{}
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (allow all if none configured)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/events
	agentSvc := services.NewAgentService(db, storeShim{}, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	leadSvc := services.NewLeadService(db, storeShim{}, pub)
	if cfg.Leads.DefaultPageSize > 0 {
		leadSvc.DefaultPageSize = cfg.Leads.DefaultPageSize
	}
	claimSvc := services.NewClaimService(db, storeShim{}, agentSvc, pub)
	idem := idemStore{db: db, ttl: cfg.IdempotencyTTL}

	h := handlers.New(leadSvc, claimSvc, agentSvc, idem)
	if cfg.Leads.DefaultPageSize > 0 {
		h.DefaultPageSize = cfg.Leads.DefaultPageSize
	}
	if cfg.Leads.MaxPageSize > 0 {
		h.MaxPageSize = cfg.Leads.MaxPageSize
	}

	general := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAgentOrIP())
	submissions := middleware.NewWindowLimiter(cfg.Leads.PublicSubmitPerHour, time.Hour, middleware.KeyByIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Agent accounts
		auth := api.Group("/auth", general.Handler())
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)

		// Public intake
		api.POST("/leads/public",
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idem.replay),
			submissions.Handler(),
			h.SubmitLead,
		)

		// Agent-only pool operations
		agents := api.Group("/leads",
			middleware.RequireAgent(agentSvc),
			general.Handler(),
			middleware.PrivateNoStore(),
		)
		agents.GET("/public", h.ListUnclaimed)
		agents.GET("/mine", h.ListMine)
		agents.POST("/:id/claim", h.ClaimLead)
	}
}

// corsMiddleware returns the CORS handlers for the configured allowlist. An
// empty list allows every origin without credentials.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Retry-After", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header (simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Non-positive maxBytes disables the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
