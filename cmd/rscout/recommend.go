package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/reviewscout/internal/recommend"
)

var (
	recFiles    []string
	recAt       string
	recAuthor   string
	recStrategy string
	recTop      int
	recBatch    string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank reviewers for a set of changed files",
	Example: `  rscout recommend --files api/server.go,api/routes.go --at 2024-06-15T12:00:00Z --author ann
  rscout recommend --batch changes.yaml --strategy turnover`,
	RunE: runRecommend,
}

var workloadCmd = &cobra.Command{
	Use:   "workload",
	Short: "Show the review-load distribution over the trailing window",
	RunE:  runWorkload,
}

func init() {
	recommendCmd.Flags().StringSliceVar(&recFiles, "files", nil, "changed files (comma separated)")
	recommendCmd.Flags().StringVar(&recAt, "at", "", "reference time, RFC3339 (default: now)")
	recommendCmd.Flags().StringVar(&recAuthor, "author", "", "login of the change author, excluded from candidates")
	recommendCmd.Flags().StringVar(&recStrategy, "strategy", "", "chrev or turnover (default: recommender.strategy)")
	recommendCmd.Flags().IntVar(&recTop, "top", 0, "number of reviewers to return (default: recommender.top_n, -1 for all)")
	recommendCmd.Flags().StringVar(&recBatch, "batch", "", "YAML list of requests to score in one run")

	workloadCmd.Flags().StringVar(&recAt, "at", "", "reference time, RFC3339 (default: now)")
}

func parseAt(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", value, err)
	}
	return t, nil
}

func newEngine(ctx context.Context) (*recommend.Engine, func(), error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	var resultCache recommend.ResultCache
	c, err := openCache(ctx)
	if err != nil {
		logger.WithError(err).Warn("Cache unavailable, continuing without it")
	} else if c != nil {
		resultCache = c
	}

	closeAll := func() {
		if c != nil {
			c.Close()
		}
		store.Close()
	}
	return recommend.NewEngine(store, engineConfig(), resultCache), closeAll, nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if recBatch != "" {
		return runRecommendBatch(ctx)
	}

	at, err := parseAt(recAt)
	if err != nil {
		return err
	}

	engine, closeAll, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	result, err := engine.Recommend(ctx, recommend.Request{
		ReferenceTime: at,
		Files:         recFiles,
		AuthorLogin:   recAuthor,
		Strategy:      recommend.Strategy(recStrategy),
		TopN:          recTop,
	})
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(result)
	}
	printResult(result)
	return nil
}

type batchFile struct {
	Requests []struct {
		Files  []string `yaml:"files"`
		At     string   `yaml:"at"`
		Author string   `yaml:"author"`
	} `yaml:"requests"`
}

func runRecommendBatch(ctx context.Context) error {
	data, err := os.ReadFile(recBatch)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return fmt.Errorf("failed to parse batch file: %w", err)
	}

	reqs := make([]recommend.Request, 0, len(bf.Requests))
	for i, r := range bf.Requests {
		at, err := parseAt(r.At)
		if err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
		reqs = append(reqs, recommend.Request{
			ReferenceTime: at,
			Files:         r.Files,
			AuthorLogin:   r.Author,
			Strategy:      recommend.Strategy(recStrategy),
			TopN:          recTop,
		})
	}

	engine, closeAll, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	out := engine.RecommendBatch(ctx, reqs)

	if wantJSON() {
		errs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			if e != nil {
				errs[i] = e.Error()
			}
		}
		if err := printJSON(map[string]interface{}{
			"results":   out.Results,
			"errors":    errs,
			"succeeded": out.Succeeded,
			"failed":    out.Failed,
		}); err != nil {
			return err
		}
	} else {
		for i, result := range out.Results {
			fmt.Printf("# request %d\n", i)
			if out.Errors[i] != nil {
				fmt.Printf("error: %v\n\n", out.Errors[i])
				continue
			}
			printResult(result)
			fmt.Println()
		}
	}

	if out.Failed > 0 {
		return fmt.Errorf("%d of %d requests failed", out.Failed, len(reqs))
	}
	return nil
}

func printResult(result *recommend.Result) {
	tw := newTable(os.Stdout, "RANK", "LOGIN", "NAME", "SCORE", "FILES")
	for i, r := range result.Recommendations {
		files := make([]string, 0, len(r.PerFileBreakdown))
		for _, fb := range r.PerFileBreakdown {
			files = append(files, fb.Path)
		}
		row(tw, i+1, r.Login, r.CanonicalName, fmt.Sprintf("%.4f", r.Score), strings.Join(files, ","))
	}
	tw.Flush()

	var flagged []string
	for _, fr := range result.FileRisks {
		switch {
		case fr.Abandoned:
			flagged = append(flagged, fr.Path+" (no history)")
		case fr.Hoarded:
			flagged = append(flagged, fr.Path+" (single contributor)")
		}
	}
	if len(flagged) > 0 {
		fmt.Printf("\nknowledge risk: %s\n", strings.Join(flagged, ", "))
	}
}

func runWorkload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	at, err := parseAt(recAt)
	if err != nil {
		return err
	}

	engine, closeAll, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := engine.Workload(ctx, at)
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(report)
	}

	tw := newTable(os.Stdout, "LOGIN", "REVIEWS", "SHARE%", "PERCENTILE", "VS MEAN")
	for _, e := range report.Entries {
		login := e.Login
		if login == "" {
			login = e.CanonicalName
		}
		row(tw, login, e.Reviews, fmt.Sprintf("%.1f", e.SharePercent),
			fmt.Sprintf("%.2f", e.Percentile), fmt.Sprintf("%+.2f", e.RelativeToMean))
	}
	tw.Flush()
	fmt.Printf("\ntotal=%d mean=%.2f gini=%.3f\n", report.Total, report.Mean, report.Gini)
	return nil
}
