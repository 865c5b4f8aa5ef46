// Package services – LeadService
//
// This file implements LeadService, which owns public lead intake and the
// read side of the pool: the paginated newest-first listing of unclaimed
// leads and the unpaginated listing of an agent's claims.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/events"
)

// LeadRepo defines the repository contract required by LeadService.
type LeadRepo interface {
	// InsertLead persists a new unclaimed lead.
	InsertLead(ctx context.Context, db *gorm.DB, p domain.LeadPayload) (*domain.Lead, error)

	// CountUnclaimed returns the pool size.
	CountUnclaimed(ctx context.Context, db *gorm.DB) (int64, error)

	// ListUnclaimedPage returns a newest-first window of the pool.
	ListUnclaimedPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lead, error)

	// ListClaimedBy returns every lead owned by agentID.
	ListClaimedBy(ctx context.Context, db *gorm.DB, agentID uint) ([]domain.Lead, error)

	// PoolStats returns (count, maxID) of the pool for change detection.
	PoolStats(ctx context.Context, db *gorm.DB) (int64, uint, error)

	// ClaimedStats returns (count, latest claim time) for agentID's leads.
	ClaimedStats(ctx context.Context, db *gorm.DB, agentID uint) (int64, *time.Time, error)
}

// LeadService provides submission and listing of leads.
type LeadService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the lead repository used by this service.
	Repo LeadRepo
	// Events receives lead.submitted notifications. Nil disables publishing.
	Events events.Publisher

	// DefaultPageSize applies when the caller passes pageSize <= 0.
	DefaultPageSize int

	// Field caps, in runes.
	MaxNameRunes    int
	MaxMessageRunes int
	MaxFieldRunes   int
}

// NewLeadService constructs a LeadService with sane defaults.
func NewLeadService(db *gorm.DB, r LeadRepo, pub events.Publisher) *LeadService {
	return &LeadService{
		DB:              db,
		Repo:            r,
		Events:          pub,
		DefaultPageSize: 20,
		MaxNameRunes:    200,
		MaxMessageRunes: 5000,
		MaxFieldRunes:   200,
	}
}

// Submit validates and normalizes a public submission and stores it as an
// unclaimed lead.
func (s *LeadService) Submit(ctx context.Context, p domain.LeadPayload) (*domain.Lead, error) {
	tr := otel.Tracer("services/LeadService")
	ctx, span := tr.Start(ctx, "Submit")
	defer span.End()

	clean, err := s.normalize(p)
	if err != nil {
		return nil, err
	}

	lead, err := s.Repo.InsertLead(ctx, s.DB, clean)
	if err != nil {
		return nil, storageErr(err)
	}
	span.SetAttributes(attribute.Int64("lead.id", int64(lead.ID)))

	publish(ctx, s.Events, events.LeadSubmitted(lead.ID, lead.CreatedAt))
	return lead, nil
}

// ListUnclaimed returns one page of the pool, newest first, and the pool size.
// Count and page are read inside one transaction.
func (s *LeadService) ListUnclaimed(ctx context.Context, page, pageSize int) ([]domain.Lead, int64, error) {
	tr := otel.Tracer("services/LeadService")
	ctx, span := tr.Start(ctx, "ListUnclaimed",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize()
	}
	// A page past the last representable offset is empty, never a wrapped
	// offset that lands back on the first page.
	beyond := page-1 > math.MaxInt/pageSize
	offset := 0
	if !beyond {
		offset = (page - 1) * pageSize
	}

	var (
		items []domain.Lead
		total int64
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if total, err = s.Repo.CountUnclaimed(ctx, tx); err != nil {
			return err
		}
		if total == 0 || beyond {
			return nil
		}
		items, err = s.Repo.ListUnclaimedPage(ctx, tx, offset, pageSize)
		return err
	})
	if err != nil {
		return nil, 0, storageErr(err)
	}
	if items == nil {
		items = []domain.Lead{}
	}
	return items, total, nil
}

// ListClaimedBy returns every lead owned by agentID, newest first.
func (s *LeadService) ListClaimedBy(ctx context.Context, agentID uint) ([]domain.Lead, error) {
	tr := otel.Tracer("services/LeadService")
	ctx, span := tr.Start(ctx, "ListClaimedBy",
		trace.WithAttributes(attribute.Int64("agent.id", int64(agentID))),
	)
	defer span.End()

	items, err := s.Repo.ListClaimedBy(ctx, s.DB, agentID)
	if err != nil {
		return nil, storageErr(err)
	}
	if items == nil {
		items = []domain.Lead{}
	}
	return items, nil
}

// PoolVersion returns the pool's (count, maxID) pair used for ETags.
func (s *LeadService) PoolVersion(ctx context.Context) (int64, uint, error) {
	n, maxID, err := s.Repo.PoolStats(ctx, s.DB)
	if err != nil {
		return 0, 0, storageErr(err)
	}
	return n, maxID, nil
}

// ClaimsVersion returns how many leads agentID owns and the time of the most
// recent claim. Claimed leads never change again, so the pair only moves when
// the agent claims something new. latest is nil for an agent with no claims.
func (s *LeadService) ClaimsVersion(ctx context.Context, agentID uint) (count int64, latest *time.Time, err error) {
	count, latest, err = s.Repo.ClaimedStats(ctx, s.DB, agentID)
	if err != nil {
		return 0, nil, storageErr(err)
	}
	return count, latest, nil
}

func (s *LeadService) normalize(p domain.LeadPayload) (domain.LeadPayload, error) {
	out := domain.LeadPayload{
		Name:           cleanLine(p.Name),
		Email:          normalizeEmail(p.Email),
		Phone:          optional(p.Phone, cleanLine),
		CourseInterest: optional(p.CourseInterest, cleanLine),
		Message:        optional(p.Message, cleanText),
	}

	if out.Name == "" || tooLong(out.Name, s.MaxNameRunes) {
		return out, ErrInvalidLead
	}
	if !validEmail(out.Email) {
		return out, ErrInvalidLead
	}
	for _, f := range []*string{out.Phone, out.CourseInterest} {
		if f != nil && tooLong(*f, s.MaxFieldRunes) {
			return out, ErrInvalidLead
		}
	}
	if out.Message != nil && tooLong(*out.Message, s.MaxMessageRunes) {
		return out, ErrInvalidLead
	}
	return out, nil
}

func (s *LeadService) defaultPageSize() int {
	if s.DefaultPageSize > 0 {
		return s.DefaultPageSize
	}
	return 20
}

// publishTimeout bounds a single best-effort publish.
const publishTimeout = 2 * time.Second

// publish sends ev without letting broker trouble reach the caller. It runs
// detached from the request's cancellation so an event for a committed
// change is still attempted after the client goes away.
func publish(ctx context.Context, pub events.Publisher, ev events.Event) {
	if pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := pub.Publish(pctx, ev); err != nil {
		log.Warn().Err(err).
			Str("event", ev.Type).
			Uint("lead_id", ev.LeadID).
			Msg("event publish failed")
	}
}
