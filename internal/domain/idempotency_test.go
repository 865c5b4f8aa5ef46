package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestIdempotency_ScopeKeyIsUnique(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:domain_idem?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Migrator().DropTable(&Idempotency{}) })

	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_scope_key") {
		t.Fatalf("expected composite index ux_scope_key")
	}

	exp := time.Now().UTC().Add(time.Hour)
	steps := []struct {
		name    string
		row     Idempotency
		wantErr bool
	}{
		{"first submission", Idempotency{ID: "a", Scope: "ip:203.0.113.7", Key: "k1", LeadID: 42, Status: 201, ExpiresAt: exp}, false},
		{"same key other client", Idempotency{ID: "b", Scope: "ip:198.51.100.1", Key: "k1", LeadID: 43, Status: 201, ExpiresAt: exp}, false},
		{"other key same client", Idempotency{ID: "c", Scope: "ip:203.0.113.7", Key: "k2", LeadID: 44, Status: 201, ExpiresAt: exp}, false},
		{"replayed pair", Idempotency{ID: "d", Scope: "ip:203.0.113.7", Key: "k1", LeadID: 45, Status: 201, ExpiresAt: exp}, true},
	}
	for _, s := range steps {
		row := s.row
		err := db.Create(&row).Error
		if (err != nil) != s.wantErr {
			t.Fatalf("%s: err = %v; wantErr %v", s.name, err, s.wantErr)
		}
	}

	var got Idempotency
	if err := db.Where(&Idempotency{Scope: "ip:203.0.113.7", Key: "k1"}).First(&got).Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.LeadID != 42 || got.Status != 201 || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected row: %+v", got)
	}
}
