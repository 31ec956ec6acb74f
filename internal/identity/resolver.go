package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rohankatakam/reviewscout/internal/errors"
	"github.com/rohankatakam/reviewscout/internal/logging"
	"github.com/rohankatakam/reviewscout/internal/models"
	"github.com/rohankatakam/reviewscout/internal/similarity"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

// MergeObserver is told about every merge that moved ownership
type MergeObserver interface {
	OnMerge(ctx context.Context, decision models.MergeDecision) error
}

// Options configure a Resolver
type Options struct {
	Thresholds Thresholds
	DryRun     bool
	Detector   Detector      // defaults to a SweepDetector
	Observer   MergeObserver // optional
}

// Resolver owns the contributor and duplicate-record lifecycle
type Resolver struct {
	store      storage.Store
	detector   Detector
	observer   MergeObserver
	thresholds Thresholds
	dryRun     bool
	logger     *slog.Logger
}

// NewResolver creates a resolver over store
func NewResolver(store storage.Store, opts Options) *Resolver {
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	detector := opts.Detector
	if detector == nil {
		detector = NewSweepDetector(opts.Thresholds)
	}

	return &Resolver{
		store:      store,
		detector:   detector,
		observer:   opts.Observer,
		thresholds: opts.Thresholds,
		dryRun:     opts.DryRun,
		logger:     logging.Component("identity"),
	}
}

// RunReport summarizes one resolution pass
type RunReport struct {
	Contributors    int
	ManualDecisions int
	AutoDecisions   int
	RulesSkipped    int
	Recorded        int
	RecordFailed    int
	Merged          int
	Skipped         int
	Failed          int
	Orphaned        int
	DryRun          bool
	Decisions       []models.MergeDecision
}

// OK reports whether every write in the pass succeeded
func (r *RunReport) OK() bool {
	return r.RecordFailed == 0 && r.Failed == 0
}

// Run reads the current primaries, applies manual rules, records them, runs
// automatic detection over the contributors no rule claimed, records those,
// then merges every decision unless the resolver is in dry-run mode.
//
// Only the initial contributor read can fail the run; later failures are
// counted in the report and the pass continues.
func (r *Resolver) Run(ctx context.Context, rules []models.MergeRule) (*RunReport, error) {
	contributors, err := r.store.ListContributors(ctx, storage.ContributorFilter{PrimaryOnly: true})
	if err != nil {
		return nil, errors.FatalStoreError(err, "failed to read contributors")
	}

	report := &RunReport{Contributors: len(contributors), DryRun: r.dryRun}

	manual, skipped := r.ApplyManualRules(ctx, rules, contributors)
	report.ManualDecisions = len(manual)
	report.RulesSkipped = skipped
	r.record(ctx, manual, report)

	// manual claims are final, the detector never sees them
	claimed := make(map[string]bool, len(manual))
	for _, d := range manual {
		claimed[d.Duplicate.ID] = true
	}
	remaining := make([]models.Contributor, 0, len(contributors))
	for _, c := range contributors {
		if !claimed[c.ID] {
			remaining = append(remaining, c)
		}
	}

	auto := r.pinPrimaries(r.detector.Detect(remaining), manualPrimaries(rules, remaining))
	report.AutoDecisions = len(auto)
	r.record(ctx, auto, report)

	report.Decisions = append(append(report.Decisions, manual...), auto...)

	r.logger.Info("duplicate detection complete",
		"contributors", report.Contributors,
		"manual", report.ManualDecisions,
		"auto", report.AutoDecisions,
		"rules_skipped", report.RulesSkipped,
		"dry_run", r.dryRun)

	if r.dryRun {
		return report, nil
	}

	for _, d := range report.Decisions {
		outcome, err := r.ExecuteMerge(ctx, d)
		switch outcome {
		case MergeApplied:
			report.Merged++
		case MergeSkipped:
			report.Skipped++
		case MergeOrphaned:
			report.Merged++
			report.Orphaned++
		case MergeFailed:
			report.Failed++
		}
		if err != nil && outcome != MergeSkipped {
			r.logger.Warn("merge did not complete",
				"duplicate_id", d.Duplicate.ID,
				"primary_id", d.Primary.ID,
				"outcome", outcome.String(),
				"error", err)
		}
	}

	r.logger.Info("merge pass complete",
		"merged", report.Merged,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"orphaned", report.Orphaned)

	return report, nil
}

func (r *Resolver) record(ctx context.Context, decisions []models.MergeDecision, report *RunReport) {
	for _, d := range decisions {
		rec := d.Record()
		if err := r.store.UpsertDuplicateRecord(ctx, &rec); err != nil {
			report.RecordFailed++
			r.logger.Warn("failed to record duplicate",
				"duplicate_id", d.Duplicate.ID,
				"primary_id", d.Primary.ID,
				"error", err)
			continue
		}
		report.Recorded++
	}
}

// manualPrimaries returns the ids of the contributors rules name as primary
func manualPrimaries(rules []models.MergeRule, contributors []models.Contributor) map[string]bool {
	pinned := make(map[string]bool)
	for _, rule := range rules {
		for _, c := range contributors {
			if strings.EqualFold(c.LoginValue(), rule.PrimaryLogin) {
				pinned[c.ID] = true
				break
			}
		}
	}
	return pinned
}

// pinPrimaries keeps every rule primary alive. A detected group that contains
// one is re-pointed at it, and no pinned contributor is ever a duplicate.
func (r *Resolver) pinPrimaries(auto []models.MergeDecision, pinned map[string]bool) []models.MergeDecision {
	if len(pinned) == 0 {
		return auto
	}

	var order []string
	groups := make(map[string][]models.MergeDecision)
	for _, d := range auto {
		if _, ok := groups[d.Primary.ID]; !ok {
			order = append(order, d.Primary.ID)
		}
		groups[d.Primary.ID] = append(groups[d.Primary.ID], d)
	}

	var out []models.MergeDecision
	for _, id := range order {
		group := groups[id]
		elected := group[0].Primary
		primary := elected
		if !pinned[primary.ID] {
			for _, d := range group {
				if pinned[d.Duplicate.ID] {
					primary = d.Duplicate
					break
				}
			}
		}

		members := make([]models.Contributor, 0, len(group)+1)
		members = append(members, elected)
		for _, d := range group {
			members = append(members, d.Duplicate)
		}

		for i, m := range members {
			if m.ID == primary.ID {
				continue
			}
			if pinned[m.ID] {
				r.logger.Warn("automatic group joins two manual primaries, leaving them apart",
					"kept_id", primary.ID,
					"other_id", m.ID)
				continue
			}
			if primary.ID == elected.ID {
				out = append(out, group[i-1])
				continue
			}
			score := similarity.CrossField(primary, m)
			out = append(out, models.MergeDecision{
				Primary:    primary,
				Duplicate:  m,
				Similarity: score,
				Priority:   r.priority(score),
				Notes:      fmt.Sprintf("grouped under manual primary %s (similarity %.2f)", primary.DisplayName(), score),
			})
		}
	}
	return out
}

func (r *Resolver) priority(score float64) models.MergePriority {
	if score >= r.thresholds.High {
		return models.PriorityAutoHigh
	}
	return models.PriorityAutoMedium
}
