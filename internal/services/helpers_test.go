package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/events"
	"github.com/tbourn/go-lead-intake/internal/repo"
)

// newMemDB returns an empty in-memory database; enough for services that
// only need a handle to open transactions on.
func newMemDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

// newStoreDB opens a migrated, file-backed store with per-connection pragmas.
func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db = db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// storeRepo binds the repo package functions to the service interfaces.
type storeRepo struct{}

func (storeRepo) InsertLead(ctx context.Context, db *gorm.DB, p domain.LeadPayload) (*domain.Lead, error) {
	return repo.InsertLead(ctx, db, p)
}
func (storeRepo) CountUnclaimed(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountUnclaimed(ctx, db)
}
func (storeRepo) ListUnclaimedPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lead, error) {
	return repo.ListUnclaimedPage(ctx, db, offset, limit)
}
func (storeRepo) ListClaimedBy(ctx context.Context, db *gorm.DB, agentID uint) ([]domain.Lead, error) {
	return repo.ListClaimedBy(ctx, db, agentID)
}
func (storeRepo) PoolStats(ctx context.Context, db *gorm.DB) (int64, uint, error) {
	return repo.PoolStats(ctx, db)
}
func (storeRepo) ClaimedStats(ctx context.Context, db *gorm.DB, agentID uint) (int64, *time.Time, error) {
	return repo.ClaimedStats(ctx, db, agentID)
}
func (storeRepo) ClaimLead(ctx context.Context, db *gorm.DB, id, agentID uint, now time.Time) (*domain.Lead, error) {
	return repo.ClaimLead(ctx, db, id, agentID, now)
}
func (storeRepo) CreateAgent(ctx context.Context, db *gorm.DB, name, email, hash string) (*domain.Agent, error) {
	return repo.CreateAgent(ctx, db, name, email, hash)
}
func (storeRepo) GetAgentByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Agent, error) {
	return repo.GetAgentByEmail(ctx, db, email)
}
func (storeRepo) AgentExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return repo.AgentExists(ctx, db, id)
}

// recordingPublisher captures events; safe for concurrent use.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func strPtr(s string) *string { return &s }
