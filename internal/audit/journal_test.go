package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/reviewscout/internal/models"
)

func TestJournal_OnMergeAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "merges.jsonl")
	j, err := NewJournal(path)
	require.NoError(t, err)
	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, j.OnMerge(ctx, models.MergeDecision{
		Primary:    models.Contributor{ID: "p1", CanonicalName: "alice", Login: models.StringPtr("alice")},
		Duplicate:  models.Contributor{ID: "d1", CanonicalName: "alicesmith"},
		Similarity: 1.0,
		Priority:   models.PriorityManual,
		Notes:      "manual rule for alice",
	}))
	require.NoError(t, j.OnMerge(ctx, models.MergeDecision{
		Primary:    models.Contributor{ID: "p1", CanonicalName: "alice", Login: models.StringPtr("alice")},
		Duplicate:  models.Contributor{ID: "d2", CanonicalName: "alice", Login: models.StringPtr("alice2")},
		Similarity: 0.93,
		Priority:   models.PriorityAutoHigh,
	}))

	events, err := j.Read()
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "p1", events[0].PrimaryID)
	assert.Equal(t, "alice", events[0].PrimaryName)
	assert.Equal(t, "d1", events[0].DuplicateID)
	assert.Equal(t, models.PriorityManual, events[0].Priority)
	assert.Equal(t, "alice2", events[1].Duplicate)
	assert.Empty(t, events[1].Notes)
}

func TestJournal_ReadMissingAndCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merges.jsonl")
	j, err := NewJournal(path)
	require.NoError(t, err)

	events, err := j.Read()
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, j.Append(MergeEvent{PrimaryID: "p", DuplicateID: "d"}))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err = j.Read()
	assert.Error(t, err)
	assert.Len(t, events, 1)
}
