// Package domain defines the persistence models for leads and the agents who
// claim them. These types are mapped with GORM and form the core data layer
// of the lead intake service.
package domain

import "time"

// Agent is an authenticated user permitted to claim leads. Agents are created
// through registration and are only ever referenced from Lead.ClaimedBy; an
// agent does not own the storage of the leads it claims.
//
// Fields:
//   - ID: autoincrement primary key.
//   - Name: display name.
//   - Email: login identifier, unique and stored lower-case.
//   - PasswordHash: bcrypt hash; never serialized.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Agent struct {
	ID           uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name"       gorm:"type:varchar(255);not null"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_agents_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Agent.
func (Agent) TableName() string { return "agents" }

// Lead is a publicly submitted enquiry. It starts unclaimed (ClaimedBy nil)
// and is assigned to at most one agent, exactly once. The transition is
// one-way: ClaimedBy never returns to nil and never changes owner.
//
// Fields:
//   - ID: autoincrement primary key; increases with creation order and is the
//     ordering tie-break after CreatedAt.
//   - Name, Email: required contact details.
//   - Phone, CourseInterest, Message: optional payload.
//   - ClaimedBy: owning agent, nil while the lead sits in the pool.
//   - CreatedAt: immutable, primary listing sort key (newest first).
//   - UpdatedAt: refreshed by the claim transition.
//   - Claimer: FK association to agents(id).
type Lead struct {
	ID             uint      `json:"id"                        gorm:"primaryKey;autoIncrement;index:idx_leads_pool,priority:3"`
	Name           string    `json:"name"                      gorm:"type:varchar(255);not null"`
	Email          string    `json:"email"                     gorm:"type:varchar(255);not null"`
	Phone          *string   `json:"phone,omitempty"           gorm:"type:varchar(64)"`
	CourseInterest *string   `json:"course_interest,omitempty" gorm:"type:varchar(255)"`
	Message        *string   `json:"message,omitempty"         gorm:"type:text"`
	ClaimedBy      *uint     `json:"claimed_by"                gorm:"index:idx_leads_pool,priority:1"`
	CreatedAt      time.Time `json:"created_at"                gorm:"index:idx_leads_pool,priority:2"`
	UpdatedAt      time.Time `json:"updated_at"`

	Claimer *Agent `json:"-" gorm:"foreignKey:ClaimedBy;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Lead.
func (Lead) TableName() string { return "leads" }

// Claimed reports whether the lead has left the pool.
func (l Lead) Claimed() bool { return l.ClaimedBy != nil }

// AgentIdentity is what the authentication layer vouches for: the agent id
// and the email it authenticated with. The core never sees credentials.
type AgentIdentity struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// LeadPayload is the caller-supplied part of a Lead. Validation (non-empty
// name, syntactically valid email) happens before it reaches the store.
type LeadPayload struct {
	Name           string
	Email          string
	Phone          *string
	CourseInterest *string
	Message        *string
}
