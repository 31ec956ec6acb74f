package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultBatchSize bounds the number of rows written per transaction
const DefaultBatchSize = 500

// BatchResult aggregates the outcome of a chunked write. A failed chunk does
// not stop later chunks.
type BatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    []error
}

// Add folds another result into r
func (r *BatchResult) Add(other BatchResult) {
	r.Attempted += other.Attempted
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

// OK reports whether every row was written
func (r BatchResult) OK() bool {
	return r.Failed == 0
}

// BatchOptions tunes chunked writes
type BatchOptions struct {
	Size int
	// WritesPerSecond paces chunk commits; zero disables pacing
	WritesPerSecond float64
}

type batchWriter struct {
	size    int
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func newBatchWriter(opts BatchOptions, logger *logrus.Logger) *batchWriter {
	size := opts.Size
	if size <= 0 {
		size = DefaultBatchSize
	}
	w := &batchWriter{size: size, logger: logger}
	if opts.WritesPerSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(opts.WritesPerSecond), 1)
	}
	return w
}

// writeChunks runs fn for every item, one transaction per chunk
func writeChunks[T any](ctx context.Context, db *sqlx.DB, w *batchWriter, kind string, items []T, fn func(tx *sqlx.Tx, item T) error) BatchResult {
	var result BatchResult

	for start := 0; start < len(items); start += w.size {
		end := start + w.size
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		result.Attempted += len(chunk)

		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				result.Failed += len(chunk)
				result.Errors = append(result.Errors, fmt.Errorf("%s chunk %d-%d: %w", kind, start, end, err))
				continue
			}
		}

		if err := writeChunk(ctx, db, chunk, fn); err != nil {
			result.Failed += len(chunk)
			result.Errors = append(result.Errors, fmt.Errorf("%s chunk %d-%d: %w", kind, start, end, err))
			w.logger.WithError(err).WithFields(logrus.Fields{
				"kind":  kind,
				"start": start,
				"end":   end,
			}).Warn("Batch chunk failed, continuing")
			continue
		}
		result.Succeeded += len(chunk)
	}

	w.logger.WithFields(logrus.Fields{
		"kind":      kind,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Debug("Batch write finished")

	return result
}

func writeChunk[T any](ctx context.Context, db *sqlx.DB, chunk []T, fn func(tx *sqlx.Tx, item T) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range chunk {
		if err := fn(tx, item); err != nil {
			return err
		}
	}

	return tx.Commit()
}
