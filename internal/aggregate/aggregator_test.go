package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/reviewscout/internal/errors"
	"github.com/rohankatakam/reviewscout/internal/models"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

var refTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *storage.SQLStore {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	store, err := storage.NewSQLiteStore(":memory:", logger, storage.BatchOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	res := store.SaveContributors(ctx, []models.Contributor{
		{ID: "x", CanonicalName: "xavier", Login: models.StringPtr("xavier")},
		{ID: "y", CanonicalName: "yolanda", Login: models.StringPtr("yolanda")},
		{ID: "z", CanonicalName: "zed"},
	})
	require.True(t, res.OK(), "%v", res.Errors)

	res = store.SaveFiles(ctx, []models.File{
		{CanonicalPath: "f.py", CurrentPath: "f.py"},
		{CanonicalPath: "old/g.py", CurrentPath: "g.py"},
		{CanonicalPath: "other.py", CurrentPath: "other.py"},
	})
	require.True(t, res.OK(), "%v", res.Errors)

	day := 24 * time.Hour
	res = store.SaveContributions(ctx, []models.Contribution{
		{ContributorID: "x", FilePath: "f.py", ActivityType: models.ActivityReview, Timestamp: refTime.Add(-10 * day), ActivityID: "pr-1"},
		{ContributorID: "x", FilePath: "f.py", ActivityType: models.ActivityReview, Timestamp: refTime.Add(-10*day + time.Hour), ActivityID: "pr-2"},
		{ContributorID: "y", FilePath: "f.py", ActivityType: models.ActivityCommit, Timestamp: refTime.Add(-40 * day), ActivityID: "sha-1"},
		{ContributorID: "y", FilePath: "old/g.py", ActivityType: models.ActivityCommit, Timestamp: refTime.Add(-400 * day), ActivityID: "sha-0"},
		// at T: excluded from history, included in the window
		{ContributorID: "z", FilePath: "f.py", ActivityType: models.ActivityReview, Timestamp: refTime, ActivityID: "pr-3"},
		{ContributorID: "z", FilePath: "other.py", ActivityType: models.ActivityCommit, Timestamp: refTime.Add(-100 * day), ActivityID: "sha-2"},
	})
	require.True(t, res.OK(), "%v", res.Errors)

	return store
}

func TestAggregate(t *testing.T) {
	store := setupStore(t)
	a := NewAggregator(store)

	snap, err := a.Aggregate(context.Background(), Request{
		ReferenceTime: refTime,
		Files:         []string{"f.py", "g.py", "f.py", " "},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"f.py", "g.py"}, snap.Files)

	f := snap.FileStats["f.py"]
	assert.Equal(t, 2, f.Reviews)
	assert.Equal(t, 1, f.Commits)
	assert.Len(t, f.ReviewDays, 1)
	assert.Equal(t, refTime.Add(-10*24*time.Hour+time.Hour), f.LastReview)
	assert.Len(t, f.ByDeveloper, 2)
	assert.NotContains(t, f.ByDeveloper, "z")
	assert.Equal(t, 2, f.ByDeveloper["x"].Reviews)

	// renamed file resolves through its current path, and history has no lower bound
	g := snap.FileStats["g.py"]
	assert.Equal(t, 1, g.Commits)
	assert.Contains(t, g.ByDeveloper, "y")

	// window [T-365d, T] is inclusive and project-wide
	assert.Equal(t, 5, snap.WindowTotal)
	assert.Equal(t, 2, snap.Window["x"].Activity)
	assert.Equal(t, 2, snap.Window["z"].Activity)
	assert.Len(t, snap.Window["z"].ActiveMonths, 2)

	assert.Equal(t, []string{"f.py"}, snap.KnownFiles("x"))
	assert.Equal(t, []string{"f.py", "g.py"}, snap.KnownFiles("y"))
	assert.Empty(t, snap.KnownFiles("z"))
	assert.Len(t, snap.Candidates, 3)
	assert.Equal(t, "xavier", snap.Candidates["x"].DisplayName())
	assert.Equal(t, "zed", snap.Candidates["z"].DisplayName())
	assert.Equal(t, 13, snap.MonthsSpanned())
}

func TestAggregate_ExcludesAuthor(t *testing.T) {
	store := setupStore(t)
	a := NewAggregator(store)

	snap, err := a.Aggregate(context.Background(), Request{
		ReferenceTime: refTime,
		Files:         []string{"f.py"},
		AuthorID:      "x",
	})
	require.NoError(t, err)

	assert.NotContains(t, snap.Candidates, "x")
	assert.NotContains(t, snap.Window, "x")
	assert.Zero(t, snap.FileStats["f.py"].Reviews)
	assert.Equal(t, 3, snap.WindowTotal)

	included, err := a.Aggregate(context.Background(), Request{
		ReferenceTime: refTime,
		Files:         []string{"f.py"},
		AuthorID:      "x",
		IncludeAuthor: true,
	})
	require.NoError(t, err)
	assert.Contains(t, included.Candidates, "x")
}

func TestAggregate_Validation(t *testing.T) {
	a := NewAggregator(setupStore(t))

	_, err := a.Aggregate(context.Background(), Request{Files: []string{"f.py"}})
	assert.True(t, errors.IsValidation(err))

	_, err = a.Aggregate(context.Background(), Request{ReferenceTime: refTime, Files: []string{"", "  "}})
	assert.True(t, errors.IsValidation(err))
}

func TestReviewCounts(t *testing.T) {
	a := NewAggregator(setupStore(t))

	counts, err := a.ReviewCounts(context.Background(), refTime, 0)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "x", counts[0].ID)
	assert.Equal(t, 2, counts[0].Reviews)
	assert.Equal(t, "z", counts[1].ID)
	assert.Equal(t, 1, counts[1].Reviews)

	_, err = a.ReviewCounts(context.Background(), time.Time{}, 0)
	assert.True(t, errors.IsValidation(err))
}

func TestAggregate_WindowLowerBoundInclusive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	edge := refTime.Add(-DefaultLookback)

	res := store.SaveContributions(ctx, []models.Contribution{
		{ContributorID: "y", FilePath: "other.py", ActivityType: models.ActivityCommit, Timestamp: edge, ActivityID: "sha-edge"},
		{ContributorID: "y", FilePath: "other.py", ActivityType: models.ActivityCommit, Timestamp: edge.Add(-time.Nanosecond), ActivityID: "sha-before-edge"},
	})
	require.True(t, res.OK(), "%v", res.Errors)

	snap, err := NewAggregator(store).Aggregate(ctx, Request{
		ReferenceTime: refTime,
		Files:         []string{"f.py"},
	})
	require.NoError(t, err)

	// only the fact at exactly T-W joins the five seeded in-window facts
	assert.Equal(t, 6, snap.WindowTotal)
	assert.Equal(t, 2, snap.Window["y"].Activity)
	assert.Contains(t, snap.Window["y"].ActiveMonths, edge.Format("2006-01"))
}
