package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/reviewscout/internal/dataset"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

var loadCmd = &cobra.Command{
	Use:   "load <dataset.yaml>",
	Short: "Load contributors, files and contribution history",
	Long: `Load a YAML history export through the chunked batch writer. Every
chunk is attempted; the command exits non-zero if any chunk failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ds, err := dataset.Read(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summary := ds.Load(ctx, store)
	total := summary.Total()

	for _, e := range total.Errors {
		logger.WithError(e).Warn("chunk failed")
	}
	if total.Succeeded > 0 {
		purgeRecommendations(ctx)
	}

	if wantJSON() {
		if err := printJSON(map[string]interface{}{
			"contributors":    counts(summary.Contributors),
			"files":           counts(summary.Files),
			"contributions":   counts(summary.Contributions),
			"review_comments": counts(summary.ReviewComments),
		}); err != nil {
			return err
		}
	} else {
		tw := newTable(os.Stdout, "TABLE", "ATTEMPTED", "SUCCEEDED", "FAILED")
		row(tw, "contributors", summary.Contributors.Attempted, summary.Contributors.Succeeded, summary.Contributors.Failed)
		row(tw, "files", summary.Files.Attempted, summary.Files.Succeeded, summary.Files.Failed)
		row(tw, "contributions", summary.Contributions.Attempted, summary.Contributions.Succeeded, summary.Contributions.Failed)
		row(tw, "review_comments", summary.ReviewComments.Attempted, summary.ReviewComments.Succeeded, summary.ReviewComments.Failed)
		tw.Flush()
	}

	if !total.OK() {
		return fmt.Errorf("%d of %d rows failed to load", total.Failed, total.Attempted)
	}
	return nil
}

func counts(r storage.BatchResult) map[string]int {
	return map[string]int{"attempted": r.Attempted, "succeeded": r.Succeeded, "failed": r.Failed}
}
