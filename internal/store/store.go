package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lead cannot be resolved by email or token.
var ErrNotFound = errors.New("lead not found")

// DB is one campaign's lead database.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the SQLite database at path.
// ":memory:" is accepted for tests.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// IMMEDIATE transactions so a read-modify-write takes the write lock
	// up front instead of failing on upgrade under concurrent writers.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{db}, nil
}

// Migrate applies the schema. Migrations are additive-only and safe to run
// against an existing database.
func (db *DB) Migrate() error {
	migrations := []string{
		migrationLeads,
		migrationLeadDetails,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationLeads = `
CREATE TABLE IF NOT EXISTS leads (
    email TEXT PRIMARY KEY,
    first_name TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'gray',
    token TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_status_change_at TIMESTAMP NOT NULL,
    email_sent INTEGER NOT NULL DEFAULT 0,
    sent_template TEXT NOT NULL DEFAULT '',
    interact_count INTEGER NOT NULL DEFAULT 0,
    opened_at TIMESTAMP,
    last_interact_at TIMESTAMP,
    notes TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_token ON leads(token);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
`

const migrationLeadDetails = `
CREATE TABLE IF NOT EXISTS lead_details (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    position TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lead_details_email ON lead_details(email);
`
