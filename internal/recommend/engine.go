// Package recommend scores and ranks candidate reviewers for a change set.
package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rohankatakam/reviewscout/internal/aggregate"
	"github.com/rohankatakam/reviewscout/internal/cache"
	"github.com/rohankatakam/reviewscout/internal/errors"
	"github.com/rohankatakam/reviewscout/internal/logging"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

// Strategy selects the scoring family
type Strategy string

const (
	StrategyCHRev    Strategy = "chrev"
	StrategyTurnover Strategy = "turnover"
)

// CachePattern matches every cached recommendation
const CachePattern = "recommend:*"

// ResultCache stores serialized results; misses are (false, nil)
type ResultCache interface {
	Get(ctx context.Context, key string, target interface{}) (bool, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// Config holds the engine's scoring knobs
type Config struct {
	Strategy       Strategy
	Lookback       time.Duration
	WorkloadWindow time.Duration
	TopN           int // <= 0 returns every candidate
	Weights        Weights
	ExcludeUnknown bool
	IncludeAuthor  bool
	CacheTTL       time.Duration
}

// DefaultConfig mirrors the stock configuration file
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyCHRev,
		Lookback:       aggregate.DefaultLookback,
		WorkloadWindow: aggregate.DefaultWorkloadWindow,
		TopN:           5,
		Weights:        DefaultWeights(),
		CacheTTL:       15 * time.Minute,
	}
}

// Request is one change set to find reviewers for
type Request struct {
	ReferenceTime time.Time `json:"reference_time"`
	Files         []string  `json:"files"`
	AuthorLogin   string    `json:"author_login,omitempty"`
	Strategy      Strategy  `json:"strategy,omitempty"` // empty uses the engine default
	TopN          int       `json:"top_n,omitempty"`    // 0 uses the engine default
}

// Recommendation is one ranked reviewer
type Recommendation struct {
	Login            string          `json:"login"`
	CanonicalName    string          `json:"canonical_name"`
	Score            float64         `json:"score"`
	PerFileBreakdown []FileBreakdown `json:"per_file_breakdown"`
	Turnover         *TurnoverScore  `json:"turnover,omitempty"`
}

// Result is the ranked output for one request
type Result struct {
	Strategy        Strategy         `json:"strategy"`
	ReferenceTime   time.Time        `json:"reference_time"`
	Files           []string         `json:"files"`
	Candidates      int              `json:"candidates"`
	Recommendations []Recommendation `json:"recommendations"`
	FileRisks       []FileRisk       `json:"file_risks"`
}

// Engine ties the aggregator to the scoring families
type Engine struct {
	store      storage.Store
	aggregator *aggregate.Aggregator
	cache      ResultCache
	config     Config
	logger     *slog.Logger
}

// NewEngine creates an engine; resultCache may be nil
func NewEngine(store storage.Store, cfg Config, resultCache ResultCache) *Engine {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyCHRev
	}
	return &Engine{
		store:      store,
		aggregator: aggregate.NewAggregator(store),
		cache:      resultCache,
		config:     cfg,
		logger:     logging.Component("recommend"),
	}
}

// Recommend ranks reviewers for one change set
func (e *Engine) Recommend(ctx context.Context, req Request) (*Result, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = e.config.Strategy
	}
	if strategy != StrategyCHRev && strategy != StrategyTurnover {
		return nil, errors.ValidationErrorf("unknown strategy %q", strategy)
	}
	topN := req.TopN
	if topN == 0 {
		topN = e.config.TopN
	}

	key := e.cacheKey(req, strategy, topN)
	if e.cache != nil {
		var cached Result
		hit, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			e.logger.Warn("cache read failed", "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	authorID, err := e.resolveAuthor(ctx, req.AuthorLogin)
	if err != nil {
		return nil, err
	}

	snap, err := e.aggregator.Aggregate(ctx, aggregate.Request{
		ReferenceTime: req.ReferenceTime,
		Files:         req.Files,
		Lookback:      e.config.Lookback,
		AuthorID:      authorID,
		IncludeAuthor: e.config.IncludeAuthor,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Strategy:      strategy,
		ReferenceTime: snap.ReferenceTime,
		Files:         snap.Files,
		Candidates:    len(snap.Candidates),
		FileRisks:     SummarizeFileRisk(snap),
	}

	switch strategy {
	case StrategyCHRev:
		ranked := Rank(ScoreCHRev(snap), func(s CHRevScore) float64 { return s.Score }, topN)
		for _, s := range ranked {
			result.Recommendations = append(result.Recommendations, Recommendation{
				Login:            s.Candidate.Login,
				CanonicalName:    s.Candidate.CanonicalName,
				Score:            s.Score,
				PerFileBreakdown: s.Files,
			})
		}
	case StrategyTurnover:
		ranked := Rank(ScoreTurnover(snap, e.config.Weights, e.config.ExcludeUnknown),
			func(s TurnoverScore) float64 { return s.Turnover }, topN)
		for i := range ranked {
			s := ranked[i]
			result.Recommendations = append(result.Recommendations, Recommendation{
				Login:            s.Candidate.Login,
				CanonicalName:    s.Candidate.CanonicalName,
				Score:            s.Turnover,
				PerFileBreakdown: fileBreakdowns(snap, s.Candidate.ID, s.KnownFiles),
				Turnover:         &s,
			})
		}
	}

	e.logger.Info("recommendation complete",
		"strategy", string(strategy),
		"files", len(result.Files),
		"candidates", result.Candidates,
		"returned", len(result.Recommendations))

	if e.cache != nil {
		if err := e.cache.SetWithTTL(ctx, key, result, e.config.CacheTTL); err != nil {
			e.logger.Warn("cache write failed", "error", err)
		}
	}

	return result, nil
}

// InvalidateCache drops every cached recommendation. Call it after anything
// rewrites contribution history (loads, merges).
func (e *Engine) InvalidateCache(ctx context.Context) (int64, error) {
	if e.cache == nil {
		return 0, nil
	}
	n, err := e.cache.DeletePattern(ctx, CachePattern)
	if err != nil {
		return 0, errors.StoreError(err, "failed to purge cached recommendations")
	}
	e.logger.Info("cached recommendations purged", "count", n)
	return n, nil
}

// BatchOutcome holds one result or error per request, in request order
type BatchOutcome struct {
	Results   []*Result
	Errors    []error
	Succeeded int
	Failed    int
}

// RecommendBatch runs every request; a failing request is recorded and the
// loop moves on.
func (e *Engine) RecommendBatch(ctx context.Context, reqs []Request) *BatchOutcome {
	out := &BatchOutcome{
		Results: make([]*Result, len(reqs)),
		Errors:  make([]error, len(reqs)),
	}

	for i, req := range reqs {
		result, err := e.Recommend(ctx, req)
		if err != nil {
			out.Errors[i] = err
			out.Failed++
			e.logger.Warn("recommendation failed", "index", i, "error", err)
			continue
		}
		out.Results[i] = result
		out.Succeeded++
	}

	return out
}

// Workload reports the review-load distribution over the trailing window
// ending at referenceTime.
func (e *Engine) Workload(ctx context.Context, referenceTime time.Time) (*WorkloadReport, error) {
	counts, err := e.aggregator.ReviewCounts(ctx, referenceTime, e.config.WorkloadWindow)
	if err != nil {
		return nil, err
	}
	return ComputeWorkload(counts), nil
}

// resolveAuthor maps a login to a contributor id; unknown logins exclude nobody
func (e *Engine) resolveAuthor(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", nil
	}
	matches, err := e.store.ListContributors(ctx, storage.ContributorFilter{
		Logins:      []string{login},
		PrimaryOnly: true,
	})
	if err != nil {
		return "", errors.StoreError(err, "failed to resolve author")
	}
	if len(matches) == 0 {
		e.logger.Debug("author not found, nobody excluded", "login", login)
		return "", nil
	}
	return matches[0].ID, nil
}

func (e *Engine) cacheKey(req Request, strategy Strategy, topN int) string {
	payload, _ := json.Marshal(struct {
		Request
		Strategy Strategy
		TopN     int
		Config   Config
	}{req, strategy, topN, e.config})
	sum := sha256.Sum256(payload)
	return cache.Key("recommend", string(strategy), hex.EncodeToString(sum[:]))
}

func fileBreakdowns(snap *aggregate.Snapshot, id string, known []string) []FileBreakdown {
	out := make([]FileBreakdown, 0, len(known))
	for _, path := range known {
		out = append(out, fileBreakdown(snap.FileStats[path], id))
	}
	return out
}
