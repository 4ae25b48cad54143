package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY,
				license_plate VARCHAR(16) UNIQUE NOT NULL,
				username VARCHAR(100) NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				role VARCHAR(20) NOT NULL DEFAULT 'user',
				push_token TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version: 2,
		Up: `
			CREATE TABLE IF NOT EXISTS messages (
				seq BIGSERIAL UNIQUE,
				id UUID PRIMARY KEY,
				conversation_key VARCHAR(65) NOT NULL,
				text TEXT,
				image_url TEXT,
				sender_id VARCHAR(32) NOT NULL,
				sender_name VARCHAR(100) NOT NULL DEFAULT '',
				sent_at TIMESTAMPTZ NOT NULL,
				read BOOLEAN NOT NULL DEFAULT false,
				CHECK (text IS NOT NULL OR image_url IS NOT NULL)
			);

			CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_key, sent_at, seq);
			CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_key, sender_id) WHERE read = false;
		`,
		Down: `
			DROP TABLE IF EXISTS messages;
		`,
	},
	{
		Version: 3,
		Up: `
			CREATE TABLE IF NOT EXISTS conversations (
				conversation_key VARCHAR(65) PRIMARY KEY,
				participant_a VARCHAR(32) NOT NULL,
				participant_b VARCHAR(32) NOT NULL,
				last_message TEXT NOT NULL,
				last_message_sender_id VARCHAR(32) NOT NULL,
				last_message_at TIMESTAMPTZ NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_conversations_a ON conversations(participant_a, last_message_at DESC);
			CREATE INDEX IF NOT EXISTS idx_conversations_b ON conversations(participant_b, last_message_at DESC);

			CREATE TABLE IF NOT EXISTS conversation_unread (
				conversation_key VARCHAR(65) NOT NULL REFERENCES conversations(conversation_key) ON DELETE CASCADE,
				participant_id VARCHAR(32) NOT NULL,
				unread_count INT NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
				PRIMARY KEY (conversation_key, participant_id)
			);
		`,
		Down: `
			DROP TABLE IF EXISTS conversation_unread;
			DROP TABLE IF EXISTS conversations;
		`,
	},
	{
		Version: 4,
		Up: `
			CREATE TABLE IF NOT EXISTS blocks (
				id VARCHAR(80) PRIMARY KEY,
				blocker_id VARCHAR(32) NOT NULL,
				blocked_id VARCHAR(32) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE(blocker_id, blocked_id)
			);

			CREATE INDEX IF NOT EXISTS idx_blocks_blocked ON blocks(blocked_id);

			CREATE TABLE IF NOT EXISTS reports (
				id UUID PRIMARY KEY,
				reporter_id VARCHAR(32) NOT NULL,
				reported_id VARCHAR(65) NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				type VARCHAR(20) NOT NULL DEFAULT 'user',
				status VARCHAR(20) NOT NULL DEFAULT 'open',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_reports_reported ON reports(reported_id);
		`,
		Down: `
			DROP TABLE IF EXISTS reports;
			DROP TABLE IF EXISTS blocks;
		`,
	},
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB) error {
	// Ensure migrations table exists
	if err := ensureMigrationsTable(db); err != nil {
		return err
	}

	// Get current version
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return err
	}

	sorted := make([]Migration, len(Migrations))
	copy(sorted, Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, migration := range sorted {
		if migration.Version <= currentVersion {
			continue
		}

		if err := applyMigration(db, migration); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.Up); err != nil {
		return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
