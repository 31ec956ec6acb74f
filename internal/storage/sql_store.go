package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// SQLStore implements Store over any sqlx-supported SQL database. Queries are
// written with "?" placeholders and rebound for the driver.
type SQLStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
	writer *batchWriter
}

func newSQLStore(db *sqlx.DB, logger *logrus.Logger, opts BatchOptions) *SQLStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &SQLStore{
		db:     db,
		logger: logger,
		writer: newBatchWriter(opts, logger),
	}
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and maintenance commands
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Contributor operations

const contributorColumns = `id, canonical_name, login, email, is_primary, created_at`

func (s *SQLStore) ListContributors(ctx context.Context, filter ContributorFilter) ([]models.Contributor, error) {
	query := `SELECT ` + contributorColumns + ` FROM contributors`
	var where []string
	var args []interface{}

	var match []string
	if len(filter.Logins) > 0 {
		match = append(match, `LOWER(login) IN (?)`)
		args = append(args, lowerAll(filter.Logins))
	}
	if len(filter.Emails) > 0 {
		match = append(match, `LOWER(email) IN (?)`)
		args = append(args, lowerAll(filter.Emails))
	}
	if len(filter.CanonicalNames) > 0 {
		match = append(match, `LOWER(canonical_name) IN (?)`)
		args = append(args, lowerAll(filter.CanonicalNames))
	}
	if len(match) > 0 {
		where = append(where, "("+strings.Join(match, " OR ")+")")
	}
	if filter.PrimaryOnly {
		where = append(where, `is_primary = ?`)
		args = append(args, true)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build contributor query: %w", err)
	}

	var contributors []models.Contributor
	if err := s.db.SelectContext(ctx, &contributors, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}

	return contributors, nil
}

func (s *SQLStore) GetContributor(ctx context.Context, id string) (*models.Contributor, error) {
	var c models.Contributor
	query := s.db.Rebind(`SELECT ` + contributorColumns + ` FROM contributors WHERE id = ?`)

	if err := s.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contributor: %w", err)
	}

	return &c, nil
}

// SaveContributors inserts contributors as live primaries. Rows with a login
// upsert on it; rows without one are keyed by id.
func (s *SQLStore) SaveContributors(ctx context.Context, contributors []models.Contributor) BatchResult {
	byLogin := s.db.Rebind(`
		INSERT INTO contributors (id, canonical_name, login, email, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (login) DO UPDATE SET
			email = COALESCE(contributors.email, excluded.email)
	`)
	byID := s.db.Rebind(`
		INSERT INTO contributors (id, canonical_name, login, email, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)

	return writeChunks(ctx, s.db, s.writer, "contributors", contributors, func(tx *sqlx.Tx, c models.Contributor) error {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		query := byID
		if c.Login != nil {
			query = byLogin
		}
		_, err := tx.ExecContext(ctx, query,
			c.ID, c.CanonicalName, c.Login, c.Email, true, c.CreatedAt.UTC())
		return mapWriteError(err)
	})
}

func (s *SQLStore) DeleteContributor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM contributors WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete contributor: %w", mapWriteError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ReassignContributor(ctx context.Context, fromID, toID string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Facts the primary already owns would collide on the dedup key.
	dropColliding := tx.Rebind(`
		DELETE FROM contributions
		WHERE contributor_id = ?
		  AND EXISTS (
			SELECT 1 FROM contributions p
			WHERE p.contributor_id = ?
			  AND p.activity_id = contributions.activity_id
			  AND p.activity_type = contributions.activity_type
			  AND p.file_path = contributions.file_path
		  )
	`)
	if _, err := tx.ExecContext(ctx, dropColliding, fromID, toID); err != nil {
		return 0, fmt.Errorf("drop colliding contributions: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE contributions SET contributor_id = ? WHERE contributor_id = ?`), toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("reassign contributions: %w", err)
	}
	moved, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE review_comments SET contributor_id = ? WHERE contributor_id = ?`), toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("reassign review comments: %w", err)
	}
	comments, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE contributors SET is_primary = ? WHERE id = ?`), false, fromID); err != nil {
		return 0, fmt.Errorf("clear primary flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return moved + comments, nil
}

// File and contribution operations

func (s *SQLStore) SaveFiles(ctx context.Context, files []models.File) BatchResult {
	query := s.db.Rebind(`
		INSERT INTO files (canonical_path, current_path)
		VALUES (?, ?)
		ON CONFLICT (canonical_path) DO UPDATE SET current_path = excluded.current_path
	`)

	return writeChunks(ctx, s.db, s.writer, "files", files, func(tx *sqlx.Tx, f models.File) error {
		current := f.CurrentPath
		if current == "" {
			current = f.CanonicalPath
		}
		_, err := tx.ExecContext(ctx, query, f.CanonicalPath, current)
		return mapWriteError(err)
	})
}

func (s *SQLStore) SaveContributions(ctx context.Context, contributions []models.Contribution) BatchResult {
	query := s.db.Rebind(`
		INSERT INTO contributions
		(contributor_id, file_path, activity_type, timestamp, lines_modified, activity_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (activity_id, activity_type, file_path, contributor_id) DO NOTHING
	`)

	return writeChunks(ctx, s.db, s.writer, "contributions", contributions, func(tx *sqlx.Tx, c models.Contribution) error {
		_, err := tx.ExecContext(ctx, query,
			c.ContributorID, c.FilePath, c.ActivityType, c.Timestamp.UTC(), c.LinesModified, c.ActivityID)
		return mapWriteError(err)
	})
}

func (s *SQLStore) SaveReviewComments(ctx context.Context, comments []models.ReviewComment) BatchResult {
	query := s.db.Rebind(`
		INSERT INTO review_comments (contributor_id, activity_id, file_path, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	return writeChunks(ctx, s.db, s.writer, "review_comments", comments, func(tx *sqlx.Tx, c models.ReviewComment) error {
		_, err := tx.ExecContext(ctx, query, c.ContributorID, c.ActivityID, c.FilePath, c.Body, c.CreatedAt.UTC())
		return mapWriteError(err)
	})
}

func (s *SQLStore) ListContributions(ctx context.Context, q ContributionQuery) ([]models.ContributionRow, error) {
	query := `
		SELECT c.id, c.contributor_id, c.file_path, c.activity_type, c.timestamp,
		       c.lines_modified, c.activity_id,
		       p.login, p.canonical_name, f.current_path
		FROM contributions c
		JOIN contributors p ON p.id = c.contributor_id
		JOIN files f ON f.canonical_path = c.file_path`

	var where []string
	var args []interface{}

	if len(q.Paths) > 0 {
		where = append(where, `(f.canonical_path IN (?) OR f.current_path IN (?))`)
		args = append(args, q.Paths, q.Paths)
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		where = append(where, `c.activity_type IN (?)`)
		args = append(args, types)
	}
	if !q.Since.IsZero() {
		where = append(where, `c.timestamp >= ?`)
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		op := "<"
		if q.UntilInclusive {
			op = "<="
		}
		where = append(where, `c.timestamp `+op+` ?`)
		args = append(args, q.Until.UTC())
	}
	if len(q.ExcludeContributorIDs) > 0 {
		where = append(where, `c.contributor_id NOT IN (?)`)
		args = append(args, q.ExcludeContributorIDs)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY c.timestamp, c.id`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build contribution query: %w", err)
	}

	var rows []models.ContributionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}

	return rows, nil
}

func (s *SQLStore) CountContributions(ctx context.Context, contributorID string) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM contributions WHERE contributor_id = ?`)
	if err := s.db.GetContext(ctx, &n, query, contributorID); err != nil {
		return 0, fmt.Errorf("count contributions: %w", err)
	}
	return n, nil
}

// Duplicate record operations

func (s *SQLStore) UpsertDuplicateRecord(ctx context.Context, r *models.DuplicateRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	// Re-recording a pair never downgrades priority or similarity.
	query := s.db.Rebind(`
		INSERT INTO duplicate_records
		(id, primary_contributor_id, duplicate_contributor_id, login, email, canonical_name,
		 similarity_score, merge_priority, priority_rank, is_merged, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (primary_contributor_id, login) DO UPDATE SET
			duplicate_contributor_id = excluded.duplicate_contributor_id,
			similarity_score = CASE WHEN excluded.similarity_score > duplicate_records.similarity_score
				THEN excluded.similarity_score ELSE duplicate_records.similarity_score END,
			merge_priority = CASE WHEN excluded.priority_rank > duplicate_records.priority_rank
				THEN excluded.merge_priority ELSE duplicate_records.merge_priority END,
			priority_rank = CASE WHEN excluded.priority_rank > duplicate_records.priority_rank
				THEN excluded.priority_rank ELSE duplicate_records.priority_rank END,
			notes = CASE WHEN excluded.priority_rank > duplicate_records.priority_rank
				THEN excluded.notes ELSE duplicate_records.notes END
	`)

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.PrimaryContributorID, r.DuplicateContributorID, r.Login, r.Email, r.CanonicalName,
		r.SimilarityScore, r.MergePriority, r.MergePriority.Rank(), r.IsMerged, r.Notes, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert duplicate record: %w", mapWriteError(err))
	}

	return nil
}

func (s *SQLStore) ListDuplicateRecords(ctx context.Context, filter DuplicateFilter) ([]models.DuplicateRecord, error) {
	query := `
		SELECT id, primary_contributor_id, duplicate_contributor_id, login, email, canonical_name,
		       similarity_score, merge_priority, is_merged, notes, created_at, merged_at
		FROM duplicate_records`
	var where []string
	var args []interface{}

	if filter.UnmergedOnly {
		where = append(where, `is_merged = ?`)
		args = append(args, false)
	}
	if filter.DuplicateContributorID != "" {
		where = append(where, `duplicate_contributor_id = ?`)
		args = append(args, filter.DuplicateContributorID)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY priority_rank DESC, created_at, id`

	var records []models.DuplicateRecord
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list duplicate records: %w", err)
	}

	return records, nil
}

func (s *SQLStore) MarkDuplicateMerged(ctx context.Context, primaryID, duplicateID string, at time.Time) error {
	query := s.db.Rebind(`
		UPDATE duplicate_records SET is_merged = ?, merged_at = ?
		WHERE primary_contributor_id = ? AND duplicate_contributor_id = ? AND is_merged = ?
	`)
	if _, err := s.db.ExecContext(ctx, query, true, at.UTC(), primaryID, duplicateID, false); err != nil {
		return fmt.Errorf("mark duplicate merged: %w", err)
	}
	return nil
}

// mapWriteError folds driver-specific unique violations into ErrConflict
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}

	return err
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
