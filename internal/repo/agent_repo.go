// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Agent model.
//
// Agents are looked up by id (to validate a claimant) and by email (login).
// Emails are expected to be normalized (trimmed, lower-case) by the caller.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

// CreateAgent inserts a new agent. A duplicate email yields ErrDuplicate.
func CreateAgent(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.Agent, error) {
	now := time.Now().UTC()
	a := &domain.Agent{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return a, nil
}

// GetAgentByEmail fetches an agent by (normalized) email, or ErrNotFound.
func GetAgentByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Agent, error) {
	var a domain.Agent
	if err := db.WithContext(ctx).Where("email = ?", email).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// AgentExists reports whether an agent with id exists.
func AgentExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Agent{}).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// isUniqueViolation detects unique-constraint failures across drivers that
// do not map them to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite returns plain-text errors; Postgres reports SQLSTATE 23505.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "23505")
}
