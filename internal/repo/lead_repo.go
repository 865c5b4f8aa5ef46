// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Lead model
// and the conditional write that arbitrates claims.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a lead is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - ClaimLead returns ErrAlreadyClaimed when the lead exists but its
//     claimed_by column was no longer NULL at the moment of the write.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - InsertLead(ctx, db, payload) -> *domain.Lead, error
//     Inserts an unclaimed lead with UTC timestamps.
//
//   - GetLead(ctx, db, id) -> *domain.Lead, error
//     Fetches a single lead, or ErrNotFound.
//
//   - CountUnclaimed(ctx, db) -> (int64, error)
//     Number of leads currently in the pool.
//
//   - ListUnclaimedPage(ctx, db, offset, limit) -> []domain.Lead, error
//     A window of the pool ordered newest first (created_at DESC, id DESC).
//
//   - ListClaimedBy(ctx, db, agentID) -> []domain.Lead, error
//     Every lead owned by agentID, same ordering, unpaginated.
//
//   - ClaimLead(ctx, db, id, agentID, now) -> *domain.Lead, error
//     Compare-and-swap on claimed_by: NULL -> agentID.
//
// Usage:
//
//	lead, err := repo.ClaimLead(ctx, db, 42, agentID, time.Now().UTC())
//	switch {
//	case errors.Is(err, repo.ErrNotFound):
//	    // no such lead
//	case errors.Is(err, repo.ErrAlreadyClaimed):
//	    // someone owns it already
//	case err != nil:
//	    // storage failure
//	}
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrAlreadyClaimed is returned by ClaimLead when the conditional write
// matched no row because claimed_by was already set.
var ErrAlreadyClaimed = errors.New("lead already claimed")

// leadOrder is the deterministic total order used by every listing.
const leadOrder = "created_at DESC, id DESC"

// InsertLead persists a new unclaimed lead. ID is assigned by the database.
func InsertLead(ctx context.Context, db *gorm.DB, p domain.LeadPayload) (*domain.Lead, error) {
	now := time.Now().UTC()
	l := &domain.Lead{
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		CourseInterest: p.CourseInterest,
		Message:        p.Message,
		ClaimedBy:      nil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// GetLead fetches a lead by id, or ErrNotFound.
func GetLead(ctx context.Context, db *gorm.DB, id uint) (*domain.Lead, error) {
	var l domain.Lead
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// CountUnclaimed returns the number of leads whose claimed_by is NULL.
func CountUnclaimed(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("claimed_by IS NULL").
		Count(&total).Error
	return total, err
}

// ListUnclaimedPage returns a window of unclaimed leads ordered newest first.
// The caller computes offset and limit (offset = (page-1)*limit).
func ListUnclaimedPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lead, error) {
	var out []domain.Lead
	err := db.WithContext(ctx).
		Where("claimed_by IS NULL").
		Order(leadOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListClaimedBy returns all leads owned by agentID, newest first.
func ListClaimedBy(ctx context.Context, db *gorm.DB, agentID uint) ([]domain.Lead, error) {
	var out []domain.Lead
	err := db.WithContext(ctx).
		Where("claimed_by = ?", agentID).
		Order(leadOrder).
		Find(&out).Error
	return out, err
}

// ClaimLead assigns lead id to agentID if and only if it is still unclaimed.
//
// The assignment is a single conditional UPDATE (WHERE claimed_by IS NULL);
// the store serializes competing writers, so of N concurrent calls for the
// same id exactly one sees RowsAffected = 1. Losers, and any later retry,
// observe ErrAlreadyClaimed. The existence check that separates ErrNotFound
// from ErrAlreadyClaimed runs only after the write matched nothing and does
// not influence who wins.
func ClaimLead(ctx context.Context, db *gorm.DB, id, agentID uint, now time.Time) (*domain.Lead, error) {
	var claimed *domain.Lead
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Lead{}).
			Where("id = ? AND claimed_by IS NULL", id).
			Updates(map[string]any{
				"claimed_by": agentID,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&domain.Lead{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrAlreadyClaimed
		}

		var l domain.Lead
		if err := tx.Where("id = ?", id).First(&l).Error; err != nil {
			return err
		}
		claimed = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
