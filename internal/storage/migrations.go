package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Alert configurations
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				keywords_json TEXT NOT NULL,
				sources_json TEXT NOT NULL,
				priority TEXT NOT NULL,
				notify_json TEXT NOT NULL,
				schedule_json TEXT NOT NULL,
				active INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				last_triggered DATETIME,
				trigger_count INTEGER NOT NULL DEFAULT 0
			);

			-- Trigger history (bounded, rotated on append)
			CREATE TABLE IF NOT EXISTS triggers (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				triggered_at DATETIME NOT NULL,
				item_title TEXT NOT NULL,
				item_description TEXT,
				item_link TEXT NOT NULL,
				item_source TEXT NOT NULL,
				item_pub_date DATETIME NOT NULL,
				matched_json TEXT NOT NULL,
				priority TEXT NOT NULL,
				acknowledged INTEGER NOT NULL DEFAULT 0,
				acknowledged_at DATETIME
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(active);
			CREATE INDEX IF NOT EXISTS idx_triggers_alert ON triggers(alert_id);
			CREATE INDEX IF NOT EXISTS idx_triggers_time ON triggers(triggered_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
