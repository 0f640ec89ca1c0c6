package repo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

func TestOpenDatabase_Errors(t *testing.T) {
	cases := []struct {
		name   string
		driver string
		dsn    string
	}{
		{"unknown driver", "oracle", "x"},
		{"missing parent dir", DriverSQLite, filepath.Join(t.TempDir(), "nope", "comics.db")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, err := OpenDatabase(tc.driver, tc.dsn)
			if err == nil || db != nil {
				t.Fatalf("got db=%v err=%v", db, err)
			}
		})
	}
}

func TestOpenDatabase_SQLiteSettings(t *testing.T) {
	// Driver names are case- and space-insensitive; empty means sqlite.
	for _, driver := range []string{"", " SQLite "} {
		db, err := OpenDatabase(driver, filepath.Join(t.TempDir(), "comics.db"))
		if err != nil {
			t.Fatalf("OpenDatabase(%q): %v", driver, err)
		}
		sqlDB, _ := db.DB()

		pragmas := map[string]string{
			"journal_mode": "wal",
			"synchronous":  "1",
			"foreign_keys": "1",
			"busy_timeout": "5000",
		}
		for name, want := range pragmas {
			var got string
			if err := db.Raw("PRAGMA " + name).Row().Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s: %v", name, err)
			}
			if strings.ToLower(got) != want {
				t.Fatalf("PRAGMA %s = %q; want %q", name, got, want)
			}
		}
		if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
			t.Fatalf("MaxOpenConnections = %d", n)
		}
		_ = sqlDB.Close()
	}
}

func TestAutoMigrate_CreatesSchemaWithForeignKeys(t *testing.T) {
	db, err := OpenDatabase(DriverSQLite, filepath.Join(t.TempDir(), "comics.db"))
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// Idempotent.
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}
	for _, tbl := range []any{&domain.Comic{}, &domain.Guild{}, &domain.Message{}, &domain.Vote{}} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("missing table for %T", tbl)
		}
	}

	// Every pooled connection enforces foreign keys, not just the first.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := RecordMessage(ctx, db, 999, 999, uint64(1000+i), 1)
		if !errors.Is(err, ErrIntegrity) {
			t.Fatalf("attempt %d: err = %v; want ErrIntegrity", i, err)
		}
	}
}
