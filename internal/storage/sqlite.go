package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// NewSQLiteStore creates a SQLite-backed store (for local use and tests).
// Pass ":memory:" for a throwaway database.
func NewSQLiteStore(path string, logger *logrus.Logger, opts BatchOptions) (*SQLStore, error) {
	if path != ":memory:" {
		// Ensure directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if path != ":memory:" {
		db.Exec("PRAGMA journal_mode = WAL")
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return newSQLStore(db, logger, opts), nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS contributors (
	id TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	login TEXT,
	email TEXT,
	is_primary BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	canonical_path TEXT PRIMARY KEY,
	current_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contributions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	file_path TEXT NOT NULL REFERENCES files(canonical_path),
	activity_type TEXT NOT NULL CHECK (activity_type IN ('commit', 'review')),
	timestamp DATETIME NOT NULL,
	lines_modified INTEGER,
	activity_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS review_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	activity_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS duplicate_records (
	id TEXT PRIMARY KEY,
	primary_contributor_id TEXT NOT NULL,
	duplicate_contributor_id TEXT NOT NULL,
	login TEXT,
	email TEXT,
	canonical_name TEXT NOT NULL DEFAULT '',
	similarity_score REAL NOT NULL CHECK (similarity_score >= 0.0 AND similarity_score <= 1.0),
	merge_priority TEXT NOT NULL,
	priority_rank INTEGER NOT NULL,
	is_merged BOOLEAN NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	merged_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contributors_login ON contributors(login);
CREATE INDEX IF NOT EXISTS idx_contributors_email ON contributors(email);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contributions_dedup
	ON contributions(activity_id, activity_type, file_path, contributor_id);
CREATE INDEX IF NOT EXISTS idx_contributions_file ON contributions(file_path, activity_type, timestamp);
CREATE INDEX IF NOT EXISTS idx_contributions_contributor ON contributions(contributor_id);
CREATE INDEX IF NOT EXISTS idx_review_comments_contributor ON review_comments(contributor_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_duplicate_records_key ON duplicate_records(primary_contributor_id, login);
`
