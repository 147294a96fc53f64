package repo

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bitafam/terrenos/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	// Be tolerant across platforms/drivers:
	// - Windows: *os.PathError ("CreateFile â€¦ cannot find the file specified")
	// - SQLite:  "unable to open database file" / "out of memory (14)"
	// - Unix:    "no such file or directory"
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_SetsPragmas_Pool_AndAutoMigrate(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "app.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	// --- Verify PRAGMAs set by OpenSQLite ---
	var (
		journalMode string
		syncVal     int
		fkOn        int
		busyMS      int
	)

	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}

	if err := db.Raw("PRAGMA synchronous;").Row().Scan(&syncVal); err != nil {
		t.Fatalf("PRAGMA synchronous: %v", err)
	}
	// NORMAL == 1
	if syncVal != 1 {
		t.Fatalf("expected synchronous=1 (NORMAL), got %d", syncVal)
	}

	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkOn)
	}

	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}

	// --- Verify pool tuning applied ---
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	// --- AutoMigrate should create all tables ---
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.Listing{}, &domain.User{}, &domain.Account{}, &domain.Inquiry{}, &domain.Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Quick insert round-trip to prove schema is usable.
	now := time.Now().UTC()
	l := &domain.Listing{ID: "l1", OwnerID: "u1", Title: "t", Description: "d", Location: "x", Type: domain.TypeUrban, Status: domain.StatusAvailable, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("insert listing: %v", err)
	}
	in := &domain.Inquiry{ID: "i1", ListingID: "l1", Name: "n", Email: "e@x.com", Message: "m", CreatedAt: now}
	if err := db.Create(in).Error; err != nil {
		t.Fatalf("insert inquiry: %v", err)
	}

	var got domain.Listing
	if err := db.First(&got, "id = ?", "l1").Error; err != nil || got.OwnerID != "u1" {
		t.Fatalf("readback listing failed: err=%v got=%+v", err, got)
	}
}

func TestOpenSQLite_ForeignKeysOnEveryConnection(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "fk.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	// Hold several connections at once so the pool must open fresh ones.
	ctx := context.Background()
	conns := make([]*sql.Conn, 0, 4)
	t.Cleanup(func() {
		for _, c := range conns {
			_ = c.Close()
		}
	})
	for i := 0; i < 4; i++ {
		c, err := sqlDB.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		conns = append(conns, c)

		var fk, busy int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys;").Scan(&fk); err != nil {
			t.Fatalf("conn %d foreign_keys: %v", i, err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout;").Scan(&busy); err != nil {
			t.Fatalf("conn %d busy_timeout: %v", i, err)
		}
		if fk != 1 || busy != 5000 {
			t.Fatalf("conn %d: foreign_keys=%d busy_timeout=%d", i, fk, busy)
		}
	}
	for _, c := range conns {
		_ = c.Close()
	}
	conns = conns[:0]

	// Inquiries cascade with their listing whatever connection runs the delete.
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	now := time.Now().UTC()
	for i, id := range []string{"l1", "l2", "l3"} {
		l := &domain.Listing{ID: id, OwnerID: "u1", Title: "t", Description: "d", Location: "x", Type: domain.TypeUrban, Status: domain.StatusAvailable, CreatedAt: now, UpdatedAt: now}
		if err := db.Create(l).Error; err != nil {
			t.Fatalf("insert listing: %v", err)
		}
		in := &domain.Inquiry{ID: "i" + id, ListingID: id, Name: "n", Email: "e@x.com", Message: "m", CreatedAt: now.Add(time.Duration(i) * time.Second)}
		if err := db.Create(in).Error; err != nil {
			t.Fatalf("insert inquiry: %v", err)
		}
	}
	for _, id := range []string{"l1", "l2", "l3"} {
		if err := db.Delete(&domain.Listing{}, "id = ?", id).Error; err != nil {
			t.Fatalf("delete %s: %v", id, err)
		}
	}
	var left int64
	if err := db.Model(&domain.Inquiry{}).Count(&left).Error; err != nil {
		t.Fatalf("count inquiries: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected inquiries to cascade, %d left", left)
	}

	// An orphan inquiry is refused.
	orphan := &domain.Inquiry{ID: "orphan", ListingID: "missing", Name: "n", Email: "e@x.com", Message: "m", CreatedAt: now}
	if err := db.Create(orphan).Error; err == nil {
		t.Fatalf("expected foreign key violation for orphan inquiry")
	}
}

func TestSQLiteDSN_KeepsCallerQuery(t *testing.T) {
	if got := sqliteDSN("app.db"); !strings.HasPrefix(got, "app.db?_pragma=") || strings.Count(got, "_pragma=") != 4 {
		t.Fatalf("unexpected dsn %q", got)
	}
	got := sqliteDSN("app.db?mode=rwc")
	if !strings.HasPrefix(got, "app.db?mode=rwc&_pragma=") {
		t.Fatalf("caller query lost: %q", got)
	}
	if !strings.Contains(got, "foreign_keys%281%29") {
		t.Fatalf("foreign_keys pragma missing: %q", got)
	}
}

func TestOpen_SQLiteWithTracing_AndUnknownDriver(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "traced.db"))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	if len(db.Config.Plugins) == 0 {
		t.Fatalf("expected tracing plugin to be registered")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	if _, err := Open("oracle", "x"); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
