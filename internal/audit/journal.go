package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// MergeEvent is one applied merge as written to the journal
type MergeEvent struct {
	Timestamp   time.Time            `json:"timestamp"`
	PrimaryID   string               `json:"primary_id"`
	PrimaryName string               `json:"primary_name"`
	DuplicateID string               `json:"duplicate_id"`
	Duplicate   string               `json:"duplicate"`
	Similarity  float64              `json:"similarity"`
	Priority    models.MergePriority `json:"priority"`
	Notes       string               `json:"notes,omitempty"`
}

// Journal appends merge events to a JSONL file
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewJournal creates the journal's directory; the file is opened per write
func NewJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &Journal{path: path, now: time.Now}, nil
}

// OnMerge records the decision
func (j *Journal) OnMerge(ctx context.Context, d models.MergeDecision) error {
	return j.Append(MergeEvent{
		Timestamp:   j.now().UTC(),
		PrimaryID:   d.Primary.ID,
		PrimaryName: d.Primary.DisplayName(),
		DuplicateID: d.Duplicate.ID,
		Duplicate:   d.Duplicate.DisplayName(),
		Similarity:  d.Similarity,
		Priority:    d.Priority,
		Notes:       d.Notes,
	})
}

// Append writes one event as a single line
func (j *Journal) Append(event MergeEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(event)
}

// Read returns every event in the journal, oldest first
func (j *Journal) Read() ([]MergeEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []MergeEvent
	dec := json.NewDecoder(f)
	for dec.More() {
		var e MergeEvent
		if err := dec.Decode(&e); err != nil {
			return events, fmt.Errorf("corrupt journal entry %d: %w", len(events)+1, err)
		}
		events = append(events, e)
	}
	return events, nil
}
