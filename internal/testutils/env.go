// Package testutils provides helpers shared across integration tests.
package testutils

import (
	"os"
	"testing"
)

// IsIntegrationTestEnvironment returns true when a test database is
// available for integration tests.
func IsIntegrationTestEnvironment() bool {
	return os.Getenv("DATABASE_URL") != ""
}

// GetTestDatabaseURL returns the test database URL, failing the test if it
// is not configured.
func GetTestDatabaseURL(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL environment variable is required for this test")
	}
	return dbURL
}
