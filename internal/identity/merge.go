package identity

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rohankatakam/reviewscout/internal/errors"
	"github.com/rohankatakam/reviewscout/internal/models"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

// MergeOutcome describes what ExecuteMerge did
type MergeOutcome int

const (
	MergeApplied MergeOutcome = iota
	// MergeSkipped: duplicate already gone, or primary missing
	MergeSkipped
	// MergeOrphaned: ownership moved but the duplicate row could not be deleted
	MergeOrphaned
	MergeFailed
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeApplied:
		return "applied"
	case MergeSkipped:
		return "skipped"
	case MergeOrphaned:
		return "orphaned"
	case MergeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExecuteMerge folds the duplicate into the primary: contributions and review
// comments move in one transaction, the duplicate record is flagged merged
// and the duplicate contributor is deleted. Re-running it for a duplicate
// that no longer exists is a no-op.
func (r *Resolver) ExecuteMerge(ctx context.Context, d models.MergeDecision) (MergeOutcome, error) {
	log := r.logger.With("duplicate_id", d.Duplicate.ID, "primary_id", d.Primary.ID)

	if _, err := r.store.GetContributor(ctx, d.Duplicate.ID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			log.Debug("duplicate already merged, skipping")
			return MergeSkipped, nil
		}
		return MergeFailed, errors.StoreError(err, "failed to look up duplicate")
	}

	if _, err := r.store.GetContributor(ctx, d.Primary.ID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			log.Warn("merge primary vanished, skipping")
			return MergeSkipped, errors.NotFoundErrorf("primary contributor %s not found", d.Primary.ID)
		}
		return MergeFailed, errors.StoreError(err, "failed to look up primary")
	}

	moved, err := r.store.ReassignContributor(ctx, d.Duplicate.ID, d.Primary.ID)
	if err != nil {
		return MergeFailed, errors.StoreError(err, "failed to reassign contributions")
	}

	if err := r.store.MarkDuplicateMerged(ctx, d.Primary.ID, d.Duplicate.ID, time.Now()); err != nil {
		return MergeFailed, errors.StoreError(err, "failed to flag duplicate record")
	}

	r.notify(ctx, d)

	if err := r.store.DeleteContributor(ctx, d.Duplicate.ID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		log.Warn("duplicate left orphaned after reassignment", "error", err)
		return MergeOrphaned, errors.StoreError(err, "failed to delete duplicate contributor").
			WithContext("duplicate_id", d.Duplicate.ID)
	}

	log.Info("merged duplicate contributor",
		"moved", moved,
		"priority", string(d.Priority),
		"similarity", d.Similarity)
	return MergeApplied, nil
}

func (r *Resolver) notify(ctx context.Context, d models.MergeDecision) {
	if r.observer == nil {
		return
	}
	if err := r.observer.OnMerge(ctx, d); err != nil {
		r.logger.Warn("merge observer failed", "duplicate_id", d.Duplicate.ID, "error", err)
	}
}

// CleanupReport counts the outcome of an orphan sweep
type CleanupReport struct {
	Examined int
	Deleted  int
	Failed   int
}

// CleanupOrphans deletes contributors that a merge already emptied: no longer
// primary, named by a duplicate record, and owning no contributions.
func (r *Resolver) CleanupOrphans(ctx context.Context) (*CleanupReport, error) {
	all, err := r.store.ListContributors(ctx, storage.ContributorFilter{})
	if err != nil {
		return nil, errors.FatalStoreError(err, "failed to read contributors")
	}

	report := &CleanupReport{}
	for _, c := range all {
		if c.IsPrimary {
			continue
		}
		report.Examined++

		records, err := r.store.ListDuplicateRecords(ctx, storage.DuplicateFilter{DuplicateContributorID: c.ID})
		if err != nil {
			report.Failed++
			r.logger.Warn("failed to read duplicate records", "contributor_id", c.ID, "error", err)
			continue
		}
		if len(records) == 0 {
			continue
		}

		n, err := r.store.CountContributions(ctx, c.ID)
		if err != nil {
			report.Failed++
			r.logger.Warn("failed to count contributions", "contributor_id", c.ID, "error", err)
			continue
		}
		if n > 0 {
			continue
		}

		for _, rec := range records {
			if !rec.IsMerged {
				if err := r.store.MarkDuplicateMerged(ctx, rec.PrimaryContributorID, c.ID, time.Now()); err != nil {
					r.logger.Warn("failed to flag duplicate record", "contributor_id", c.ID, "error", err)
				}
			}
		}

		if err := r.store.DeleteContributor(ctx, c.ID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			report.Failed++
			r.logger.Warn("failed to delete orphan", "contributor_id", c.ID, "error", err)
			continue
		}
		report.Deleted++
	}

	r.logger.Info("orphan cleanup complete",
		"examined", report.Examined,
		"deleted", report.Deleted,
		"failed", report.Failed)
	return report, nil
}
