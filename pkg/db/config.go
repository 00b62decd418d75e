package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"
)

// findProjectRoot looks for go.mod file to determine project root
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// constructDBURL creates the database URL from environment variables
func constructDBURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)
}

// enumDefinitions maps postgres enum type names to their values
var enumDefinitions = []struct {
	name   string
	values []string
}{
	{"bot_status", []string{"IDLE", "RUNNING", "PAUSED", "DISABLED", "ERROR"}},
	{"bot_type", []string{"RESULTS_SCRAPE", "MEMBER_SYNC", "ARCHIVE_SCRAPE"}},
	{"run_status", []string{"STARTED", "RUNNING", "COMPLETED", "FAILED"}},
	{"trigger_type", []string{"MANUAL", "SCHEDULED"}},
}

// ensureEnumTypes ensures the postgres enum types used by the models exist
func ensureEnumTypes(db *gorm.DB) error {
	for _, def := range enumDefinitions {
		var exists bool
		err := db.Raw(`
			SELECT EXISTS (
				SELECT 1 FROM pg_type
				WHERE typname = ?
			);
		`, def.name).Scan(&exists).Error
		if err != nil {
			return err
		}

		if exists {
			continue
		}

		stmt := fmt.Sprintf("CREATE TYPE %s AS ENUM ('%s');",
			def.name, strings.Join(def.values, "', '"))
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
