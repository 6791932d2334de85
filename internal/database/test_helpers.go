package database

import (
	"os"
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated database for tests. It uses TEST_DB_DSN when
// set (for example a disposable PostgreSQL database) and otherwise a SQLite
// file in a temporary directory. The database is closed on test cleanup.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = filepath.Join(t.TempDir(), "test.db")
	}

	db, err := New(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}
