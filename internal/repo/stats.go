// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

// PoolStats returns the number of unclaimed leads and the highest unclaimed
// id. Ids only grow and leads only ever leave the pool, so the pair changes
// whenever the pool's membership changes. maxID is 0 for an empty pool.
func PoolStats(ctx context.Context, db *gorm.DB) (count int64, maxID uint, err error) {
	q := db.WithContext(ctx).Model(&domain.Lead{}).Where("claimed_by IS NULL").Session(&gorm.Session{})

	if err = q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	var row struct {
		ID uint
	}
	if err = q.Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.ID, nil
}

// ClaimedStats returns how many leads agentID owns and the latest UpdatedAt
// among them (the claim time of the most recent claim). maxUpdatedAt is nil
// when the agent owns nothing.
func ClaimedStats(ctx context.Context, db *gorm.DB, agentID uint) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Lead{}).Where("claimed_by = ?", agentID).Session(&gorm.Session{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
