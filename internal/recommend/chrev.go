package recommend

import (
	"math"
	"time"

	"github.com/rohankatakam/reviewscout/internal/aggregate"
)

// componentsPerFile is the number of summed cHRev components
const componentsPerFile = 5

// FileBreakdown is one candidate's cHRev components on one changed file
type FileBreakdown struct {
	Path           string  `json:"path"`
	ReviewShare    float64 `json:"review_share"`
	WorkDayOverlap float64 `json:"work_day_overlap"`
	ReviewRecency  float64 `json:"review_recency"`
	CommitShare    float64 `json:"commit_share"`
	CommitRecency  float64 `json:"commit_recency"`
	Score          float64 `json:"score"` // [0,5]
}

// CHRevScore is one candidate's normalized developer score
type CHRevScore struct {
	Candidate aggregate.Candidate
	Score     float64 // [0,1]
	Files     []FileBreakdown
}

// ScoreCHRev scores every candidate with history on at least one changed
// file. Candidates keep the snapshot's first-seen order.
func ScoreCHRev(snap *aggregate.Snapshot) []CHRevScore {
	total := len(snap.Files)
	var scores []CHRevScore

	for _, id := range snap.CandidateIDs() {
		known := snap.KnownFiles(id)
		if len(known) == 0 {
			continue
		}

		sum := 0.0
		breakdown := make([]FileBreakdown, 0, len(known))
		for _, path := range known {
			fb := fileBreakdown(snap.FileStats[path], id)
			sum += fb.Score
			breakdown = append(breakdown, fb)
		}

		scores = append(scores, CHRevScore{
			Candidate: snap.Candidates[id],
			Score:     ratio(sum, float64(componentsPerFile*total)),
			Files:     breakdown,
		})
	}

	return scores
}

func fileBreakdown(fs *aggregate.FileStats, devID string) FileBreakdown {
	dev := fs.ByDeveloper[devID]
	fb := FileBreakdown{Path: fs.Path}
	if dev == nil {
		return fb
	}

	fb.ReviewShare = ratio(float64(dev.Reviews), float64(fs.Reviews))
	fb.WorkDayOverlap = ratio(float64(len(dev.ReviewDays)), float64(len(fs.ReviewDays)))
	fb.ReviewRecency = recency(dev.LastReview, fs.LastReview)
	fb.CommitShare = ratio(float64(dev.Commits), float64(fs.Commits))
	fb.CommitRecency = recency(dev.LastCommit, fs.LastCommit)
	fb.Score = fb.ReviewShare + fb.WorkDayOverlap + fb.ReviewRecency + fb.CommitShare + fb.CommitRecency

	return fb
}

// recency is 1/(1+days) with days the whole-day gap; 0 if either is missing
func recency(dev, file time.Time) float64 {
	if dev.IsZero() || file.IsZero() {
		return 0
	}
	return 1.0 / (1.0 + DayDistance(dev, file))
}

// DayDistance is the absolute gap in whole days, rounded down
func DayDistance(a, b time.Time) float64 {
	hours := math.Abs(a.Sub(b).Hours())
	return math.Floor(hours / 24)
}

// ratio guards every division: a zero denominator yields 0
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
