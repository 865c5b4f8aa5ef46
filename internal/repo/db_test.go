package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

func openFile(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "leads.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want error", bad, db, err)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestOpenSQLite_ConnectionPragmas(t *testing.T) {
	db := openFile(t, "pragmas.db")

	cases := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tc := range cases {
		var got string
		if err := db.Raw("PRAGMA " + tc.pragma).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", tc.pragma, err)
		}
		if strings.ToLower(got) != tc.want {
			t.Errorf("PRAGMA %s = %q; want %q", tc.pragma, got, tc.want)
		}
	}

	sqlDB, _ := db.DB()
	if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
		t.Errorf("MaxOpenConnections = %d; want 10", n)
	}
}

func TestAutoMigrate_SchemaAndClaimForeignKey(t *testing.T) {
	db := openFile(t, "schema.db")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// Idempotent on an existing schema.
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}

	m := db.Migrator()
	for _, model := range []any{&domain.Agent{}, &domain.Lead{}, &domain.Idempotency{}} {
		if !m.HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}

	agent := &domain.Agent{Name: "Ada", Email: "ada@example.com", PasswordHash: "x"}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("insert agent: %v", err)
	}
	lead := &domain.Lead{Name: "Grace", Email: "grace@example.com", ClaimedBy: &agent.ID}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("insert claimed lead: %v", err)
	}

	// claimed_by must reference an existing agent.
	ghost := agent.ID + 99
	orphan := &domain.Lead{Name: "Orphan", Email: "o@example.com", ClaimedBy: &ghost}
	if err := db.Create(orphan).Error; err == nil {
		t.Fatalf("expected foreign key violation for claimed_by=%d", ghost)
	}
}

func TestOpen_DispatchesByDriver(t *testing.T) {
	cases := []struct {
		driver, dsn string
		wantErr     bool
	}{
		{"mysql", "whatever", true},
		{DriverPostgres, "   ", true},
		{"", filepath.Join(t.TempDir(), "default.db"), false},
		{" SQLite ", filepath.Join(t.TempDir(), "named.db"), false},
	}
	for _, tc := range cases {
		db, err := Open(tc.driver, tc.dsn)
		if (err != nil) != tc.wantErr {
			t.Fatalf("Open(%q, %q) err = %v; wantErr %v", tc.driver, tc.dsn, err, tc.wantErr)
		}
		if db != nil {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
	}
}

func TestSqliteDSN(t *testing.T) {
	cases := []struct {
		in, prefix string
	}{
		{"leads.db", "leads.db?_pragma=journal_mode(WAL)&"},
		{"file:x?mode=memory&cache=shared", "file:x?mode=memory&cache=shared&_pragma=journal_mode(WAL)&"},
	}
	for _, tc := range cases {
		got := sqliteDSN(tc.in)
		if !strings.HasPrefix(got, tc.prefix) {
			t.Errorf("sqliteDSN(%q) = %q; want prefix %q", tc.in, got, tc.prefix)
		}
		if strings.Count(got, "?") != 1 || !strings.HasSuffix(got, "_pragma=busy_timeout(5000)") {
			t.Errorf("sqliteDSN(%q) = %q; malformed query", tc.in, got)
		}
	}
}
