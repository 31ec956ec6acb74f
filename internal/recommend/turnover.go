package recommend

import (
	"math"

	"github.com/rohankatakam/reviewscout/internal/aggregate"
)

// Weights bias the retention and turnover composites
type Weights struct {
	C1Turnover  float64 `json:"c1_turnover"`
	C2Turnover  float64 `json:"c2_turnover"`
	C1Retention float64 `json:"c1_retention"`
	C2Retention float64 `json:"c2_retention"`
}

// DefaultWeights leaves every factor unscaled
func DefaultWeights() Weights {
	return Weights{C1Turnover: 1, C2Turnover: 1, C1Retention: 1, C2Retention: 1}
}

// TurnoverScore holds one candidate's retention and turnover factors
type TurnoverScore struct {
	Candidate         aggregate.Candidate
	KnownFiles        []string
	Knowledge         float64 `json:"knowledge"`
	LearnFactor       float64 `json:"learn_factor"`
	Consistency       float64 `json:"consistency"`
	ContributionShare float64 `json:"contribution_share"`
	Retention         float64 `json:"retention"`
	Turnover          float64 `json:"turnover"`
}

// ScoreTurnover computes the composite for every candidate. With
// excludeUnknown, candidates that know none of the changed files are dropped.
func ScoreTurnover(snap *aggregate.Snapshot, w Weights, excludeUnknown bool) []TurnoverScore {
	months := float64(snap.MonthsSpanned())
	var scores []TurnoverScore

	for _, id := range snap.CandidateIDs() {
		known := snap.KnownFiles(id)
		if excludeUnknown && len(known) == 0 {
			continue
		}

		s := TurnoverScore{
			Candidate:  snap.Candidates[id],
			KnownFiles: known,
			Knowledge:  ratio(float64(len(known)), float64(len(snap.Files))),
		}
		s.LearnFactor = 1 - s.Knowledge

		if ws, ok := snap.Window[id]; ok {
			s.Consistency = math.Min(ratio(float64(len(ws.ActiveMonths)), months), 1.0)
			s.ContributionShare = ratio(float64(ws.Activity), float64(snap.WindowTotal))
		}

		s.Retention = (w.C1Retention * s.Consistency) * (w.C2Retention * s.ContributionShare)
		s.Turnover = (w.C1Turnover * s.LearnFactor) * (w.C2Turnover * s.Retention)

		scores = append(scores, s)
	}

	return scores
}
