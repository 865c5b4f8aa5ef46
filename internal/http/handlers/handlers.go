// Package handlers implements the HTTP endpoints of the lead intake API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results (and service sentinel errors) into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/services"
)

//
// Service contracts (context-aware)
//

// LeadService covers public submission and the pool/claims reads.
type LeadService interface {
	// Submit validates and stores a public submission.
	Submit(ctx context.Context, p domain.LeadPayload) (*domain.Lead, error)
	// ListUnclaimed returns a newest-first page of the pool and its total size.
	ListUnclaimed(ctx context.Context, page, pageSize int) ([]domain.Lead, int64, error)
	// ListClaimedBy returns every lead owned by agentID, newest first.
	ListClaimedBy(ctx context.Context, agentID uint) ([]domain.Lead, error)
	// PoolVersion returns a cheap change detector for the pool.
	PoolVersion(ctx context.Context) (count int64, maxID uint, err error)
	// ClaimsVersion returns a change detector for one agent's claims.
	ClaimsVersion(ctx context.Context, agentID uint) (count int64, latest *time.Time, err error)
}

// ClaimService arbitrates claims.
type ClaimService interface {
	TryClaim(ctx context.Context, leadID, agentID uint) (services.ClaimResult, error)
}

// AgentService registers agents and issues tokens.
type AgentService interface {
	Register(ctx context.Context, name, email, password string) (*domain.Agent, error)
	Login(ctx context.Context, email, password string) (services.LoginResult, error)
}

// IdempotencyStore remembers accepted public submissions per (scope, key).
// Replays are detected upstream by middleware.IdempotencyValidator.
type IdempotencyStore interface {
	// Remember stores the outcome of an accepted submission.
	Remember(ctx context.Context, scope, key string, leadID uint, status int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	leadSvc  LeadService
	claimSvc ClaimService
	agentSvc AgentService
	idem     IdempotencyStore

	// DefaultPageSize applies when the limit query parameter is absent or
	// not a number.
	DefaultPageSize int
	// MaxPageSize caps the limit query parameter.
	MaxPageSize int
}

// New constructs a Handlers instance bound to the given services. idem may be
// nil, in which case Idempotency-Key headers are validated but not honored.
func New(leadSvc LeadService, claimSvc ClaimService, agentSvc AgentService, idem IdempotencyStore) *Handlers {
	return &Handlers{
		leadSvc:         leadSvc,
		claimSvc:        claimSvc,
		agentSvc:        agentSvc,
		idem:            idem,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}
