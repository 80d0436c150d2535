package storetest

import (
	"os"
	"testing"
)

// Environment variables consulted for a test database, in order.
const (
	EnvTestDatabaseURL = "TASKER_TEST_DB_URL"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvTaskerDBURL     = "TASKER_DATABASE_URL"
)

var ciMarkers = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}

// IsCI reports whether the tests run under a known CI provider.
func IsCI() bool {
	for _, key := range ciMarkers {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// DatabaseURL returns the first non-empty test database URL and the
// variable it came from.
func DatabaseURL() (string, string) {
	for _, key := range []string{EnvTestDatabaseURL, EnvDatabaseURL, EnvTaskerDBURL} {
		if dsn := os.Getenv(key); dsn != "" {
			return dsn, key
		}
	}
	return "", ""
}

// RequireDatabaseURL returns the test database URL. Without one the test is
// skipped locally and fails in CI, where the database is expected to exist.
func RequireDatabaseURL(t *testing.T) string {
	t.Helper()

	dsn, source := DatabaseURL()
	if dsn == "" {
		if IsCI() {
			t.Fatalf("no test database configured: set %s", EnvTestDatabaseURL)
		}
		t.Skipf("%s not set, skipping database tests", EnvTestDatabaseURL)
	}

	t.Logf("using test database from %s", source)
	return dsn
}
