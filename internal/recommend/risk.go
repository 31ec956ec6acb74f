package recommend

import "github.com/rohankatakam/reviewscout/internal/aggregate"

// FileRisk flags knowledge concentration on one changed file
type FileRisk struct {
	Path         string `json:"path"`
	Contributors int    `json:"contributors"`
	Hoarded      bool   `json:"hoarded"`   // exactly one contributor knows it
	Abandoned    bool   `json:"abandoned"` // nobody does
}

// SummarizeFileRisk reports, per changed file, how many contributors have
// history on it.
func SummarizeFileRisk(snap *aggregate.Snapshot) []FileRisk {
	risks := make([]FileRisk, 0, len(snap.Files))
	for _, path := range snap.Files {
		n := len(snap.FileStats[path].ByDeveloper)
		risks = append(risks, FileRisk{
			Path:         path,
			Contributors: n,
			Hoarded:      n == 1,
			Abandoned:    n == 0,
		})
	}
	return risks
}
