package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// migrations contains all database migrations in order. Statements are kept
// to the SQL subset shared by SQLite, PostgreSQL and MySQL.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_schema_version_table",
		Statements: []string{`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		Version: 2,
		Name:    "create_analyses_table",
		Statements: []string{`
			CREATE TABLE IF NOT EXISTS analyses (
				id VARCHAR(64) PRIMARY KEY,
				content_hash VARCHAR(64) NOT NULL,
				content TEXT NOT NULL,
				profile VARCHAR(32) NOT NULL,
				overall_score DOUBLE PRECISION NOT NULL,
				result TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE UNIQUE INDEX idx_analyses_content_hash ON analyses(content_hash)`,
			`CREATE INDEX idx_analyses_created_at ON analyses(created_at)`,
			`CREATE INDEX idx_analyses_overall_score ON analyses(overall_score)`,
		},
	},
	{
		Version: 3,
		Name:    "create_recommendations_table",
		Statements: []string{`
			CREATE TABLE IF NOT EXISTS recommendations (
				analysis_id VARCHAR(64) NOT NULL,
				ordinal INTEGER NOT NULL,
				type VARCHAR(32) NOT NULL,
				priority VARCHAR(16) NOT NULL,
				message TEXT NOT NULL,
				PRIMARY KEY (analysis_id, ordinal)
			)`,
			`CREATE INDEX idx_recommendations_type ON recommendations(type)`,
		},
	},
	{
		Version: 4,
		Name:    "add_ai_suggestions_column",
		Statements: []string{
			`ALTER TABLE analyses ADD COLUMN ai_suggestions TEXT`,
		},
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(migrations[0].Statements[0]); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Debug("checked schema version", "driver", db.driver, "version", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		for _, stmt := range migration.Statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
			}
		}

		if _, err := tx.Exec(db.rebind("INSERT INTO schema_version (version) VALUES (?)"), migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}
