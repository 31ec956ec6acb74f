package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/reviewscout/internal/audit"
	"github.com/rohankatakam/reviewscout/internal/config"
	"github.com/rohankatakam/reviewscout/internal/identity"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

var (
	rulesFile string
	dryRun    bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Detect and merge duplicate contributor identities",
	Long: `Apply manual merge rules, then detect remaining duplicates by
login/name/email similarity, record every decision and merge them.`,
	RunE: runDedupe,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete contributors left behind by interrupted merges",
	RunE:  runCleanup,
}

func init() {
	dedupeCmd.Flags().StringVar(&rulesFile, "rules", "", "manual merge rules YAML (default: identity.rules_file)")
	dedupeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "record decisions without merging")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	path := rulesFile
	if path == "" {
		path = cfg.Identity.RulesFile
	}
	rules, err := config.LoadMergeRules(path)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := identity.Options{
		Thresholds: identity.Thresholds{
			Medium: cfg.Identity.AutoMediumThreshold,
			High:   cfg.Identity.AutoHighThreshold,
		},
		DryRun: dryRun || cfg.Identity.DryRun,
	}

	var observers identity.Observers
	if cfg.Identity.JournalPath != "" {
		journal, err := audit.NewJournal(cfg.Identity.JournalPath)
		if err != nil {
			logger.WithError(err).Warn("Merge journal unavailable")
		} else {
			observers = append(observers, journal)
		}
	}

	syncer, err := openSyncer(ctx)
	if err != nil {
		logger.WithError(err).Warn("Graph sync unavailable, continuing without it")
	} else if syncer != nil {
		defer syncer.Close(ctx)
		observers = append(observers, syncer)
	}
	if len(observers) > 0 {
		opts.Observer = observers
	}

	resolver := identity.NewResolver(store, opts)
	report, err := resolver.Run(ctx, rules)
	if err != nil {
		return err
	}

	if !report.DryRun && report.Merged > 0 {
		purgeRecommendations(ctx)
	}

	if syncer != nil && !report.DryRun {
		primaries, err := store.ListContributors(ctx, storage.ContributorFilter{PrimaryOnly: true})
		if err == nil {
			_, err = syncer.SyncContributors(ctx, primaries)
		}
		if err != nil {
			logger.WithError(err).Warn("Failed to sync contributors to graph")
		}
	}

	if wantJSON() {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		tw := newTable(os.Stdout, "PRIORITY", "DUPLICATE", "PRIMARY", "SIMILARITY")
		for _, d := range report.Decisions {
			row(tw, d.Priority, d.Duplicate.DisplayName(), d.Primary.DisplayName(), fmt.Sprintf("%.2f", d.Similarity))
		}
		tw.Flush()
		fmt.Printf("\ncontributors=%d manual=%d auto=%d rules_skipped=%d recorded=%d merged=%d skipped=%d failed=%d orphaned=%d dry_run=%v\n",
			report.Contributors, report.ManualDecisions, report.AutoDecisions, report.RulesSkipped,
			report.Recorded, report.Merged, report.Skipped, report.Failed, report.Orphaned, report.DryRun)
	}

	if !report.OK() {
		return fmt.Errorf("dedupe finished with %d failed merges and %d failed records", report.Failed, report.RecordFailed)
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := identity.NewResolver(store, identity.Options{}).CleanupOrphans(ctx)
	if err != nil {
		return err
	}

	if wantJSON() {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		fmt.Printf("examined=%d deleted=%d failed=%d\n", report.Examined, report.Deleted, report.Failed)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d orphans could not be removed", report.Failed)
	}
	return nil
}
