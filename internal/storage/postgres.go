package storage

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Postgres driver names registered with database/sql
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// NewPostgresStore creates a PostgreSQL-backed store. driver selects the
// database/sql driver ("pgx" or "postgres"); empty means pgx.
func NewPostgresStore(dsn, driver string, logger *logrus.Logger, opts BatchOptions) (*SQLStore, error) {
	if driver == "" {
		driver = DriverPgx
	}
	if driver != DriverPgx && driver != DriverPq {
		return nil, fmt.Errorf("unsupported postgres driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return newSQLStore(db, logger, opts), nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS contributors (
	id TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	login TEXT,
	email TEXT,
	is_primary BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	canonical_path TEXT PRIMARY KEY,
	current_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contributions (
	id BIGSERIAL PRIMARY KEY,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	file_path TEXT NOT NULL REFERENCES files(canonical_path),
	activity_type TEXT NOT NULL CHECK (activity_type IN ('commit', 'review')),
	timestamp TIMESTAMPTZ NOT NULL,
	lines_modified INTEGER,
	activity_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS review_comments (
	id BIGSERIAL PRIMARY KEY,
	contributor_id TEXT NOT NULL REFERENCES contributors(id),
	activity_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS duplicate_records (
	id TEXT PRIMARY KEY,
	primary_contributor_id TEXT NOT NULL,
	duplicate_contributor_id TEXT NOT NULL,
	login TEXT,
	email TEXT,
	canonical_name TEXT NOT NULL DEFAULT '',
	similarity_score DOUBLE PRECISION NOT NULL CHECK (similarity_score >= 0.0 AND similarity_score <= 1.0),
	merge_priority TEXT NOT NULL,
	priority_rank INTEGER NOT NULL,
	is_merged BOOLEAN NOT NULL DEFAULT FALSE,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	merged_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contributors_login ON contributors(login);
CREATE INDEX IF NOT EXISTS idx_contributors_email ON contributors(LOWER(email));
CREATE UNIQUE INDEX IF NOT EXISTS idx_contributions_dedup
	ON contributions(activity_id, activity_type, file_path, contributor_id);
CREATE INDEX IF NOT EXISTS idx_contributions_file ON contributions(file_path, activity_type, timestamp);
CREATE INDEX IF NOT EXISTS idx_contributions_contributor ON contributions(contributor_id);
CREATE INDEX IF NOT EXISTS idx_review_comments_contributor ON review_comments(contributor_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_duplicate_records_key ON duplicate_records(primary_contributor_id, login);
`
