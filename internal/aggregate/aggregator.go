// Package aggregate turns raw contribution history into the per-file,
// per-developer and project-window statistics consumed by scoring.
package aggregate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/reviewscout/internal/errors"
	"github.com/rohankatakam/reviewscout/internal/logging"
	"github.com/rohankatakam/reviewscout/internal/models"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

const (
	// DefaultLookback is the project-wide window length
	DefaultLookback = 365 * 24 * time.Hour
	// DefaultWorkloadWindow is the trailing quarter used for workload stats
	DefaultWorkloadWindow = 90 * 24 * time.Hour
)

// Request describes one aggregation
type Request struct {
	ReferenceTime time.Time
	Files         []string
	Lookback      time.Duration
	// AuthorID is removed from every aggregate unless IncludeAuthor is set
	AuthorID      string
	IncludeAuthor bool
}

// Aggregator reads contribution history; it never writes
type Aggregator struct {
	store  storage.Store
	logger *slog.Logger
}

// NewAggregator creates an aggregator over store
func NewAggregator(store storage.Store) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logging.Component("aggregate"),
	}
}

// Aggregate builds a Snapshot. File history only counts activity strictly
// before the reference time; the project window [T-W, T] is inclusive at
// both ends.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*Snapshot, error) {
	if req.ReferenceTime.IsZero() {
		return nil, errors.ValidationError("reference time is required")
	}
	files := normalizeFiles(req.Files)
	if len(files) == 0 {
		return nil, errors.ValidationError("at least one changed file is required")
	}
	lookback := req.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	t := req.ReferenceTime.UTC()
	windowStart := t.Add(-lookback)

	var exclude []string
	if req.AuthorID != "" && !req.IncludeAuthor {
		exclude = []string{req.AuthorID}
	}

	var history, window []models.ContributionRow
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := a.store.ListContributions(gctx, storage.ContributionQuery{
			Paths:                 files,
			Until:                 t,
			ExcludeContributorIDs: exclude,
		})
		if err != nil {
			return errors.StoreError(err, "failed to read file history")
		}
		history = rows
		return nil
	})

	g.Go(func() error {
		rows, err := a.store.ListContributions(gctx, storage.ContributionQuery{
			Since:                 windowStart,
			Until:                 t,
			UntilInclusive:        true,
			ExcludeContributorIDs: exclude,
		})
		if err != nil {
			return errors.StoreError(err, "failed to read project window")
		}
		window = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := NewSnapshot(t, windowStart, files)
	for _, row := range history {
		snap.AddHistory(row)
	}
	for _, row := range window {
		snap.AddWindow(row)
	}

	a.logger.Debug("aggregated contributions",
		"files", len(files),
		"history_rows", len(history),
		"window_rows", len(window),
		"candidates", len(snap.Candidates))

	return snap, nil
}

// ReviewCounts returns per-contributor review counts over the inclusive
// window [T-window, T] across the whole project.
func (a *Aggregator) ReviewCounts(ctx context.Context, referenceTime time.Time, window time.Duration) ([]ReviewCount, error) {
	if referenceTime.IsZero() {
		return nil, errors.ValidationError("reference time is required")
	}
	if window <= 0 {
		window = DefaultWorkloadWindow
	}
	t := referenceTime.UTC()

	rows, err := a.store.ListContributions(ctx, storage.ContributionQuery{
		Types:          []models.ActivityType{models.ActivityReview},
		Since:          t.Add(-window),
		Until:          t,
		UntilInclusive: true,
	})
	if err != nil {
		return nil, errors.StoreError(err, "failed to read review window")
	}

	index := make(map[string]int)
	var counts []ReviewCount
	for _, row := range rows {
		i, ok := index[row.ContributorID]
		if !ok {
			i = len(counts)
			index[row.ContributorID] = i
			counts = append(counts, ReviewCount{Candidate: candidateFromRow(row)})
		}
		counts[i].Reviews++
	}

	return counts, nil
}

// normalizeFiles trims and de-duplicates paths, keeping first-seen order
func normalizeFiles(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
