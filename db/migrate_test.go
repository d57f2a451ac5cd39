// ABOUTME: Tests for the migration runner argument checks and embedded files
// ABOUTME: Database-backed runs need TEST_DATABASE_URL

package db

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestMigrate_EmptyDSN(t *testing.T) {
	err := Migrate("", "up")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("err = %v, want DATABASE_URL error", err)
	}
}

func TestMigrate_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "sideways", "UP", "Down"} {
		t.Run(dir, func(t *testing.T) {
			err := Migrate("postgres://localhost/test", dir)
			if err == nil || !strings.Contains(err.Error(), "direction") {
				t.Errorf("err = %v, want direction error", err)
			}
		})
	}
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("found %d up and %d down migrations", ups, downs)
	}
}

func TestMigrate_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := Migrate(dsn, "up"); err != nil {
		t.Fatalf("Migrate up failed: %v", err)
	}
	// Second run is a no-op
	if err := Migrate(dsn, "up"); err != nil {
		t.Fatalf("repeat Migrate up failed: %v", err)
	}

	pool, err := NewPool(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	var n int
	if err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('profiles', 'security_events')`).Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 2 {
		t.Errorf("found %d tables, want 2", n)
	}
}

func TestNewPool_BadURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "://not a url"); err == nil {
		t.Error("expected parse error")
	}
}
