// Package services – ClaimService
//
// ClaimService arbitrates ownership of pooled leads. A claim is one
// conditional write in the store (unclaimed -> claimed by X); the store
// serializes competing writers, so for any lead at most one TryClaim ever
// reports OutcomeClaimed. There is no retry loop and no in-process lock.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/events"
	"github.com/tbourn/go-lead-intake/internal/repo"
)

// ClaimOutcome is the business result of a claim attempt.
type ClaimOutcome int

const (
	OutcomeClaimed ClaimOutcome = iota + 1
	OutcomeAlreadyClaimed
	OutcomeNotFound
)

func (o ClaimOutcome) String() string {
	switch o {
	case OutcomeClaimed:
		return "claimed"
	case OutcomeAlreadyClaimed:
		return "already_claimed"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ClaimResult carries the outcome and, for OutcomeClaimed, the lead as
// stored after the claim.
type ClaimResult struct {
	Outcome ClaimOutcome
	Lead    *domain.Lead
}

// ClaimRepo is the store contract for claims.
type ClaimRepo interface {
	ClaimLead(ctx context.Context, db *gorm.DB, id, agentID uint, now time.Time) (*domain.Lead, error)
}

// AgentChecker confirms a claimant exists.
type AgentChecker interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

var claimOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lead_claims_total",
		Help: "Claim attempts partitioned by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(claimOutcomes)
}

// ClaimService performs claim arbitration.
type ClaimService struct {
	DB     *gorm.DB
	Repo   ClaimRepo
	Agents AgentChecker
	Events events.Publisher

	// Now is the clock for updated_at; defaults to time.Now in UTC.
	Now func() time.Time
}

// NewClaimService wires a ClaimService.
func NewClaimService(db *gorm.DB, r ClaimRepo, agents AgentChecker, pub events.Publisher) *ClaimService {
	return &ClaimService{DB: db, Repo: r, Agents: agents, Events: pub}
}

// TryClaim attempts to assign leadID to agentID.
//
// The returned error is non-nil only when the outcome is unknown: storage
// failures (wrapped with ErrStorageUnavailable) and ErrUnknownAgent. A
// retry by the winner reports OutcomeAlreadyClaimed.
func (s *ClaimService) TryClaim(ctx context.Context, leadID, agentID uint) (ClaimResult, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "TryClaim",
		trace.WithAttributes(
			attribute.Int64("lead.id", int64(leadID)),
			attribute.Int64("agent.id", int64(agentID)),
		),
	)
	defer span.End()

	if s.Agents != nil {
		ok, err := s.Agents.Exists(ctx, agentID)
		if err != nil {
			claimOutcomes.WithLabelValues("error").Inc()
			return ClaimResult{}, storageErr(err)
		}
		if !ok {
			claimOutcomes.WithLabelValues("unknown_agent").Inc()
			return ClaimResult{}, ErrUnknownAgent
		}
	}

	lead, err := s.Repo.ClaimLead(ctx, s.DB, leadID, agentID, s.now())
	var res ClaimResult
	switch {
	case err == nil:
		res = ClaimResult{Outcome: OutcomeClaimed, Lead: lead}
	case errors.Is(err, repo.ErrAlreadyClaimed):
		res = ClaimResult{Outcome: OutcomeAlreadyClaimed}
	case errors.Is(err, repo.ErrNotFound):
		res = ClaimResult{Outcome: OutcomeNotFound}
	default:
		claimOutcomes.WithLabelValues("error").Inc()
		span.RecordError(err)
		return ClaimResult{}, storageErr(err)
	}

	claimOutcomes.WithLabelValues(res.Outcome.String()).Inc()
	span.SetAttributes(attribute.String("claim.outcome", res.Outcome.String()))

	if res.Outcome == OutcomeClaimed {
		publish(ctx, s.Events, events.LeadClaimed(leadID, agentID, lead.UpdatedAt))
	}
	return res, nil
}

func (s *ClaimService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
