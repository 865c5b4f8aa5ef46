// Package events publishes lead lifecycle notifications to downstream
// consumers (CRM sync, notification workers). Publishing is best effort:
// callers log failures and never let them change the outcome of the
// operation that produced the event.
package events

import (
	"context"
	"time"
)

// Event types, also used as AMQP routing keys.
const (
	TypeLeadSubmitted = "lead.submitted"
	TypeLeadClaimed   = "lead.claimed"
)

// Event is the JSON body published for every lead transition.
type Event struct {
	Type       string    `json:"type"`
	LeadID     uint      `json:"lead_id"`
	AgentID    *uint     `json:"agent_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LeadSubmitted builds the event for a newly pooled lead.
func LeadSubmitted(leadID uint, at time.Time) Event {
	return Event{Type: TypeLeadSubmitted, LeadID: leadID, OccurredAt: at.UTC()}
}

// LeadClaimed builds the event for a lead that left the pool.
func LeadClaimed(leadID, agentID uint, at time.Time) Event {
	id := agentID
	return Event{Type: TypeLeadClaimed, LeadID: leadID, AgentID: &id, OccurredAt: at.UTC()}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
