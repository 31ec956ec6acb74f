package recommend

import (
	"math"
	"sort"

	"github.com/rohankatakam/reviewscout/internal/aggregate"
)

// WorkloadEntry describes one reviewer's share of the review load
type WorkloadEntry struct {
	Login          string  `json:"login"`
	CanonicalName  string  `json:"canonical_name"`
	Reviews        int     `json:"reviews"`
	SharePercent   float64 `json:"share_percent"`
	Percentile     float64 `json:"percentile"`       // fraction of peers with strictly fewer reviews
	RelativeToMean float64 `json:"relative_to_mean"` // (reviews - mean) / mean
}

// WorkloadReport is the review-load distribution over a trailing window
type WorkloadReport struct {
	Total   int             `json:"total"`
	Mean    float64         `json:"mean"`
	Gini    float64         `json:"gini"`
	Entries []WorkloadEntry `json:"entries"`
}

// ComputeWorkload derives shares, percentiles and the Gini coefficient.
// Entries are ordered by review count descending.
func ComputeWorkload(counts []aggregate.ReviewCount) *WorkloadReport {
	report := &WorkloadReport{}
	n := len(counts)
	if n == 0 {
		return report
	}

	values := make([]float64, n)
	for i, c := range counts {
		values[i] = float64(c.Reviews)
		report.Total += c.Reviews
	}
	report.Mean = float64(report.Total) / float64(n)
	report.Gini = Gini(values)

	for _, c := range counts {
		fewer := 0
		for _, other := range counts {
			if other.Reviews < c.Reviews {
				fewer++
			}
		}

		entry := WorkloadEntry{
			Login:          c.Login,
			CanonicalName:  c.CanonicalName,
			Reviews:        c.Reviews,
			SharePercent:   100 * ratio(float64(c.Reviews), float64(report.Total)),
			RelativeToMean: ratio(float64(c.Reviews)-report.Mean, report.Mean),
		}
		if n > 1 {
			entry.Percentile = float64(fewer) / float64(n-1)
		}
		report.Entries = append(report.Entries, entry)
	}

	report.Entries = Rank(report.Entries, func(e WorkloadEntry) float64 { return float64(e.Reviews) }, 0)
	return report
}

// Gini is the rank-weighted coefficient sum((2i-n-1)*x_i) / (n*sum(x)) over
// values sorted ascending. Empty or all-zero input yields 0.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum, weighted := 0.0, 0.0
	for i, x := range sorted {
		rank := float64(i + 1)
		sum += x
		weighted += (2*rank - float64(n) - 1) * x
	}
	if sum == 0 {
		return 0
	}

	return math.Max(0, math.Min(1, weighted/(float64(n)*sum)))
}
