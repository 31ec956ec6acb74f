package identity

import (
	"fmt"

	"github.com/rohankatakam/reviewscout/internal/models"
	"github.com/rohankatakam/reviewscout/internal/similarity"
)

// Detector groups likely-duplicate contributors into merge decisions.
// Implementations may pre-filter candidates but must produce the same
// decisions as SweepDetector for the same input order.
type Detector interface {
	Detect(contributors []models.Contributor) []models.MergeDecision
}

// Thresholds for automatic detection
type Thresholds struct {
	Medium float64 // minimum similarity to group
	High   float64 // similarity at or above which a decision is auto-high
}

// DefaultThresholds returns the stock auto-medium/auto-high cut-offs
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 0.80, High: 0.90}
}

// SweepDetector makes one left-to-right pass. Each unprocessed contributor
// seeds a group and absorbs every later unprocessed contributor that scores
// at or above the medium threshold against the seed. Absorbed contributors
// are never compared again, so a pair that only links through a later
// member stays split.
type SweepDetector struct {
	Thresholds Thresholds
}

// NewSweepDetector creates a detector with the given thresholds
func NewSweepDetector(t Thresholds) *SweepDetector {
	return &SweepDetector{Thresholds: t}
}

// Detect ignores contributors that are no longer primary
func (d *SweepDetector) Detect(contributors []models.Contributor) []models.MergeDecision {
	var candidates []models.Contributor
	for _, c := range contributors {
		if c.IsPrimary {
			candidates = append(candidates, c)
		}
	}

	processed := make(map[string]bool, len(candidates))
	var decisions []models.MergeDecision

	for i, seed := range candidates {
		if processed[seed.ID] {
			continue
		}
		processed[seed.ID] = true

		group := []models.Contributor{seed}
		links := make(map[string]float64)

		for _, other := range candidates[i+1:] {
			if processed[other.ID] {
				continue
			}
			score := similarity.CrossField(seed, other)
			if score >= d.Thresholds.Medium {
				group = append(group, other)
				links[other.ID] = score
				processed[other.ID] = true
			}
		}

		if len(group) < 2 {
			continue
		}

		primary := ChoosePrimary(group)
		for _, member := range group {
			if member.ID == primary.ID {
				continue
			}
			score, ok := links[member.ID]
			if !ok {
				// the seed itself lost the primary election
				score = similarity.CrossField(seed, primary)
			}
			decisions = append(decisions, models.MergeDecision{
				Primary:    primary,
				Duplicate:  member,
				Similarity: score,
				Priority:   d.priority(score),
				Notes:      fmt.Sprintf("grouped with %s (similarity %.2f)", seed.DisplayName(), score),
			})
		}
	}

	return decisions
}

func (d *SweepDetector) priority(score float64) models.MergePriority {
	if score >= d.Thresholds.High {
		return models.PriorityAutoHigh
	}
	return models.PriorityAutoMedium
}
