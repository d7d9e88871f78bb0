package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application. AUTOINCREMENT keeps
// ids from being reused after a collection is cleared.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS character_states (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS facts (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		content       TEXT    NOT NULL,
		importance    INTEGER NOT NULL DEFAULT 0,
		category      TEXT    NOT NULL DEFAULT '',
		embedding     BLOB,
		access_count  INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT,
		updated_at    TEXT,
		last_accessed TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_facts_unembedded ON facts(id) WHERE embedding IS NULL`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_turns (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS completed_events (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT NOT NULL
	)`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current > schemaVersion {
		return fmt.Errorf("sqlite: database schema version %d is newer than supported version %d", current, schemaVersion)
	}
	if current == schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit migration: %w", err)
	}
	return nil
}
