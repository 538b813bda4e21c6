package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"checklist/logger"

	"github.com/stretchr/testify/require"
)

var (
	testDB *DB
)

// GetTestDB returns the shared test database connection.
// Available after TestMain has run and SetupTestDB succeeded.
// Returns nil when no test database is configured.
func GetTestDB() *DB {
	return testDB
}

// SetupTestDB creates a test database connection and applies the embedded
// migrations. Should be called once in TestMain, not in individual tests.
func SetupTestDB(dbURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL, logger.Nop())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if _, err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// requireTestDB skips integration tests in -short mode or when TestMain found
// no database, and otherwise returns a freshly truncated store.
func requireTestDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := GetTestDB()
	if db == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}
	CleanupTestDB(t, db)
	return db
}

// CleanupTestDB truncates all tables for a fresh test state.
// Uses CASCADE to handle foreign key dependencies and restarts sequences.
// Fails the test if truncation fails.
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE audit_log, answers, serial_numbers, project_types, projects,
			questions, segments, types, settings, profiles, users
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)
}

// TeardownTestDB closes the test database connection.
// Should be called once in TestMain after all tests complete.
// Safe to call with nil DB (no-op).
func TeardownTestDB(db *DB) {
	if db != nil {
		db.Close()
	}
}
