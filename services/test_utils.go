package services

import (
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/agentfails/agentfails-api/models"
)

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupPostgresTestDB creates a PostgreSQL test database connection.
// Uses environment variables for configuration (TEST_DB_*).
//
// Returns nil if the database connection cannot be established or migration
// fails; in that case the test has already been skipped with t.Skipf and the
// caller must return immediately:
//
//	db := SetupPostgresTestDB(t)
//	if db == nil {
//	    return // test was skipped
//	}
//
// Exported for use in handler tests.
func SetupPostgresTestDB(t *testing.T) *gorm.DB {
	host := getEnvOrDefault("TEST_DB_HOST", "localhost")
	port := getEnvOrDefault("TEST_DB_PORT", "5432")
	user := getEnvOrDefault("TEST_DB_USERNAME", "postgres")
	password := getEnvOrDefault("TEST_DB_PASSWORD", "password")
	database := getEnvOrDefault("TEST_DB_DATABASE", "agentfails_test")
	sslmode := getEnvOrDefault("TEST_DB_SSLMODE", "disable")

	dsn := "host=" + host + " port=" + port + " user=" + user + " password=" + password + " dbname=" + database + " sslmode=" + sslmode

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Skipf("Skipping test: could not connect to test database: %v", err)
		return nil
	}

	err = db.AutoMigrate(
		&models.Member{},
		&models.Post{},
		&models.Comment{},
		&models.Vote{},
	)
	if err != nil {
		t.Skipf("Skipping test: could not migrate test database: %v", err)
		return nil
	}

	// An aborted prior run may have left rows behind; tests assert on exact
	// counts, so start from an empty database.
	CleanupTestDB(t, db)

	return db
}

// CleanupTestDB removes all rows written by a test. Exported for use in
// handler tests.
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, table := range []string{"votes", "comments", "posts", "members"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Logf("cleanup of %s failed: %v", table, err)
		}
	}
}
