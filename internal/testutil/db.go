// Package testutil provides shared helpers for integration tests. Helpers
// skip the test when TEST_DATABASE_URL is not set, so unit tests run without
// a MySQL server.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/database"
)

// tables in child-first order, so deletes never hit a foreign key.
var tables = []string{"audit_entries", "reservations", "refresh_tokens", "trips", "clients", "users"}

var migrateOnce sync.Once
var migrateErr error

// NewDB opens the database named by TEST_DATABASE_URL (a go-sql-driver DSN),
// applies the migrations once per test binary and empties every table. The
// connection closes when the test ends.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	db, err := database.OpenDSN(dsn)
	if err != nil {
		t.Fatalf("testutil.NewDB: open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	migrateOnce.Do(func() {
		migrateErr = database.Migrate(context.Background(), db, zap.NewNop())
	})
	if migrateErr != nil {
		t.Fatalf("testutil.NewDB: migrate: %v", migrateErr)
	}
	Reset(t, db)
	return db
}

// Reset deletes every row of every table.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, tbl := range tables {
		if _, err := db.Exec("DELETE FROM " + tbl); err != nil {
			t.Fatalf("testutil.Reset: %s: %v", tbl, err)
		}
	}
}
