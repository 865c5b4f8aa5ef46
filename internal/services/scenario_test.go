package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

type stack struct {
	db     *gorm.DB
	leads  *LeadService
	claims *ClaimService
	agents *AgentService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := newStoreDB(t)
	agents := NewAgentService(db, storeRepo{}, testSecret, time.Hour)
	agents.BcryptCost = bcrypt.MinCost
	return &stack{
		db:     db,
		leads:  NewLeadService(db, storeRepo{}, nil),
		claims: NewClaimService(db, storeRepo{}, agents, nil),
		agents: agents,
	}
}

func (s *stack) agent(t *testing.T, email string) uint {
	t.Helper()
	a, err := s.agents.Register(context.Background(), "Agent", email, "password123")
	require.NoError(t, err)
	return a.ID
}

func (s *stack) leadAt(t *testing.T, name string, at time.Time) uint {
	t.Helper()
	l := &domain.Lead{Name: name, Email: "lead@example.com", CreatedAt: at, UpdatedAt: at}
	require.NoError(t, s.db.Create(l).Error)
	return l.ID
}

func names(ls []domain.Lead) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Name
	}
	return out
}

// L1, L2, L3 submitted in that order; A1 and A2 contend for L2.
func TestScenario_ThreeLeadsTwoAgents(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	a1 := s.agent(t, "a1@example.com")
	a2 := s.agent(t, "a2@example.com")

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s.leadAt(t, "L1", base)
	l2 := s.leadAt(t, "L2", base.Add(time.Minute))
	s.leadAt(t, "L3", base.Add(2*time.Minute))

	items, total, err := s.leads.ListUnclaimed(ctx, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []string{"L3", "L2", "L1"}, names(items))

	res, err := s.claims.TryClaim(ctx, l2, a1)
	require.NoError(t, err)
	require.Equal(t, OutcomeClaimed, res.Outcome)
	require.NotNil(t, res.Lead.ClaimedBy)
	assert.Equal(t, a1, *res.Lead.ClaimedBy)

	res, err = s.claims.TryClaim(ctx, l2, a2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, res.Outcome)

	items, total, err = s.leads.ListUnclaimed(ctx, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"L3", "L1"}, names(items))

	mine, err := s.leads.ListClaimedBy(ctx, a1)
	require.NoError(t, err)
	assert.Equal(t, []string{"L2"}, names(mine))

	theirs, err := s.leads.ListClaimedBy(ctx, a2)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestScenario_IdempotentRetryAndUnknownLead(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	a1 := s.agent(t, "a1@example.com")
	lead := s.leadAt(t, "only", time.Now().UTC())

	res, err := s.claims.TryClaim(ctx, lead, a1)
	require.NoError(t, err)
	require.Equal(t, OutcomeClaimed, res.Outcome)

	res, err = s.claims.TryClaim(ctx, lead, a1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, res.Outcome)

	mine, err := s.leads.ListClaimedBy(ctx, a1)
	require.NoError(t, err)
	assert.Len(t, mine, 1, "retry must not duplicate ownership")

	res, err = s.claims.TryClaim(ctx, lead+1000, a1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)

	_, err = s.claims.TryClaim(ctx, lead, a1+1000)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestScenario_ConcurrentClaimsPartitionThePool(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	const nAgents, nLeads = 4, 6
	agents := make([]uint, nAgents)
	for i := range agents {
		agents[i] = s.agent(t, fmt.Sprintf("racer%d@example.com", i))
	}
	leads := make([]uint, nLeads)
	base := time.Now().UTC()
	for i := range leads {
		leads[i] = s.leadAt(t, fmt.Sprintf("lead%d", i), base.Add(time.Duration(i)*time.Second))
	}

	// Every agent tries every lead at once.
	var wins atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range agents {
		for _, l := range leads {
			a, l := a, l
			g.Go(func() error {
				res, err := s.claims.TryClaim(gctx, l, a)
				if err != nil {
					return err
				}
				switch res.Outcome {
				case OutcomeClaimed:
					wins.Add(1)
				case OutcomeAlreadyClaimed:
				default:
					return errors.New("unexpected outcome " + res.Outcome.String())
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, nLeads, wins.Load(), "exactly one winner per lead")

	// Ownership is a partition: each lead appears in exactly one agent's list.
	seen := map[uint]uint{}
	for _, a := range agents {
		mine, err := s.leads.ListClaimedBy(ctx, a)
		require.NoError(t, err)
		for _, l := range mine {
			prev, dup := seen[l.ID]
			require.Falsef(t, dup, "lead %d owned by %d and %d", l.ID, prev, a)
			seen[l.ID] = a
		}
	}
	assert.Len(t, seen, nLeads)

	_, total, err := s.leads.ListUnclaimed(ctx, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
}
