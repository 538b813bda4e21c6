package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
)

const testDatabaseName = "checklist_test"

// TestMain creates a scratch database when TEST_DATABASE_URL points at a
// server. Without it only the pure unit tests run.
func TestMain(m *testing.M) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to postgres: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure postgres is running:\n")
		fmt.Fprintf(os.Stderr, "  docker-compose up -d postgres\n")
		os.Exit(1)
	}

	_, _ = conn.Exec(ctx, "DROP DATABASE IF EXISTS "+testDatabaseName)

	_, err = conn.Exec(ctx, "CREATE DATABASE "+testDatabaseName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create test database: %v\n", err)
		conn.Close(ctx)
		os.Exit(1)
	}

	conn.Close(ctx)

	testDBURL, err := withDatabase(dbURL, testDatabaseName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid TEST_DATABASE_URL: %v\n", err)
		os.Exit(1)
	}
	testDB, err = SetupTestDB(testDBURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup test database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	TeardownTestDB(testDB)

	conn, err = pgx.Connect(ctx, dbURL)
	if err == nil {
		conn.Exec(ctx, "DROP DATABASE IF EXISTS "+testDatabaseName)
		conn.Close(ctx)
	}

	os.Exit(code)
}

func withDatabase(dbURL, name string) (string, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", err
	}
	u.Path = "/" + name
	return u.String(), nil
}
