package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/reviewscout/internal/models"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

func setupStore(t *testing.T) *storage.SQLStore {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	store, err := storage.NewSQLiteStore(":memory:", logger, storage.BatchOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// seedAliases stores alice twice (shared email) and an unrelated bob, each
// owning one commit on main.go.
func seedAliases(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	res := store.SaveContributors(ctx, []models.Contributor{
		{ID: "alice", CanonicalName: "alice", Login: models.StringPtr("alice"), Email: models.StringPtr("alice@x.com"), CreatedAt: base},
		{ID: "alice2", CanonicalName: "alicework", Login: models.StringPtr("alice-work2"), Email: models.StringPtr("alice@x.com"), CreatedAt: base.Add(time.Minute)},
		{ID: "bob", CanonicalName: "bob", Login: models.StringPtr("bob"), Email: models.StringPtr("bob@y.com"), CreatedAt: base.Add(2 * time.Minute)},
	})
	require.True(t, res.OK(), "%v", res.Errors)

	res = store.SaveFiles(ctx, []models.File{{CanonicalPath: "main.go", CurrentPath: "main.go"}})
	require.True(t, res.OK(), "%v", res.Errors)

	res = store.SaveContributions(ctx, []models.Contribution{
		{ContributorID: "alice", FilePath: "main.go", ActivityType: models.ActivityCommit, Timestamp: base, ActivityID: "sha-a"},
		{ContributorID: "alice2", FilePath: "main.go", ActivityType: models.ActivityCommit, Timestamp: base.Add(time.Hour), ActivityID: "sha-b"},
		{ContributorID: "bob", FilePath: "main.go", ActivityType: models.ActivityReview, Timestamp: base.Add(2 * time.Hour), ActivityID: "pr-1"},
	})
	require.True(t, res.OK(), "%v", res.Errors)
}

type recordingObserver struct {
	merged []models.MergeDecision
}

func (o *recordingObserver) OnMerge(ctx context.Context, d models.MergeDecision) error {
	o.merged = append(o.merged, d)
	return nil
}

type failingDeleteStore struct {
	storage.Store
}

func (s failingDeleteStore) DeleteContributor(ctx context.Context, id string) error {
	return errors.New("row locked")
}

func TestApplyManualRules(t *testing.T) {
	r := NewResolver(nil, Options{})
	contributors := []models.Contributor{
		contributor("p", "bob-99", "bob@corp.example", "bob"),
		contributor("d1", "bobby", "", "bobby"),
		contributor("d2", "robert", "ROBERT@home.example", "robert"),
		contributor("d3", "rob", "", "Bob Old"),
		contributor("x", "carol", "", "carol"),
	}
	rules := []models.MergeRule{
		{
			PrimaryLogin:    "BOB-99",
			AlternateLogins: []string{"Bobby"},
			AlternateEmails: []string{"robert@home.example"},
			AlternateNames:  []string{"bob old"},
		},
		{PrimaryLogin: "ghost", AlternateLogins: []string{"carol"}},
		{PrimaryLogin: "carol", AlternateLogins: []string{"bobby"}},
	}

	decisions, skipped := r.ApplyManualRules(context.Background(), rules, contributors)

	assert.Equal(t, 1, skipped)
	require.Len(t, decisions, 3)
	for i, want := range []string{"d1", "d2", "d3"} {
		assert.Equal(t, want, decisions[i].Duplicate.ID)
		assert.Equal(t, "p", decisions[i].Primary.ID)
		assert.Equal(t, 1.0, decisions[i].Similarity)
		assert.Equal(t, models.PriorityManual, decisions[i].Priority)
	}
}

func TestRun_MergesSharedEmail(t *testing.T) {
	store := setupStore(t)
	seedAliases(t, store)
	ctx := context.Background()
	observer := &recordingObserver{}

	r := NewResolver(store, Options{Observer: observer})
	report, err := r.Run(ctx, nil)
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Equal(t, 3, report.Contributors)
	assert.Equal(t, 1, report.AutoDecisions)
	assert.Equal(t, 1, report.Recorded)
	assert.Equal(t, 1, report.Merged)
	require.Len(t, observer.merged, 1)

	// alice-work2 scores higher (digit, no placeholder penalty) and survives
	winner := report.Decisions[0].Primary.ID
	loser := report.Decisions[0].Duplicate.ID
	assert.Equal(t, "alice2", winner)
	assert.Equal(t, "alice", loser)

	n, err := store.CountContributions(ctx, winner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.GetContributor(ctx, loser)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records, err := store.ListDuplicateRecords(ctx, storage.DuplicateFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsMerged)
}

func TestExecuteMerge_Idempotent(t *testing.T) {
	store := setupStore(t)
	seedAliases(t, store)
	ctx := context.Background()

	r := NewResolver(store, Options{})
	report, err := r.Run(ctx, nil)
	require.NoError(t, err)
	require.Len(t, report.Decisions, 1)

	before, err := store.ListContributors(ctx, storage.ContributorFilter{})
	require.NoError(t, err)
	owned, err := store.CountContributions(ctx, "alice2")
	require.NoError(t, err)

	outcome, err := r.ExecuteMerge(ctx, report.Decisions[0])
	require.NoError(t, err)
	assert.Equal(t, MergeSkipped, outcome)

	after, err := store.ListContributors(ctx, storage.ContributorFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	again, err := store.CountContributions(ctx, "alice2")
	require.NoError(t, err)
	assert.Equal(t, owned, again)
}

func TestRun_ManualPrecedence(t *testing.T) {
	store := setupStore(t)
	seedAliases(t, store)
	ctx := context.Background()

	r := NewResolver(store, Options{DryRun: true})
	report, err := r.Run(ctx, []models.MergeRule{
		{PrimaryLogin: "alice", AlternateEmails: []string{"alice@x.com"}},
	})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.ManualDecisions)
	assert.Zero(t, report.AutoDecisions)
	assert.Zero(t, report.Merged)

	records, err := store.ListDuplicateRecords(ctx, storage.DuplicateFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.PriorityManual, records[0].MergePriority)
	assert.Equal(t, "alice", records[0].PrimaryContributorID)
	assert.Equal(t, "alice2", records[0].DuplicateContributorID)
	assert.False(t, records[0].IsMerged)

	// dry run leaves ownership alone
	n, err := store.CountContributions(ctx, "alice2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExecuteMerge_MissingPrimary(t *testing.T) {
	store := setupStore(t)
	seedAliases(t, store)

	r := NewResolver(store, Options{})
	outcome, err := r.ExecuteMerge(context.Background(), models.MergeDecision{
		Primary:   contributor("ghost", "ghost", "", "ghost"),
		Duplicate: contributor("bob", "bob", "", "bob"),
		Priority:  models.PriorityManual,
	})

	assert.Equal(t, MergeSkipped, outcome)
	require.Error(t, err)

	n, cerr := store.CountContributions(context.Background(), "bob")
	require.NoError(t, cerr)
	assert.Equal(t, 1, n)
}

func TestRun_OrphanThenCleanup(t *testing.T) {
	store := setupStore(t)
	seedAliases(t, store)
	ctx := context.Background()

	r := NewResolver(failingDeleteStore{store}, Options{})
	report, err := r.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Orphaned)
	assert.Equal(t, 1, report.Merged)

	orphan, err := store.GetContributor(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, orphan.IsPrimary)

	cleanup, err := NewResolver(store, Options{}).CleanupOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleanup.Examined)
	assert.Equal(t, 1, cleanup.Deleted)
	assert.Zero(t, cleanup.Failed)

	_, err = store.GetContributor(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplyManualRules_CancelledCountsEveryRule(t *testing.T) {
	r := NewResolver(nil, Options{})
	contributors := []models.Contributor{
		contributor("p", "bob-99", "", "bob"),
		contributor("d", "bobby", "", "bobby"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decisions, skipped := r.ApplyManualRules(ctx, []models.MergeRule{
		{PrimaryLogin: "bob-99", AlternateLogins: []string{"bobby"}},
		{PrimaryLogin: "carol", AlternateLogins: []string{"caz"}},
	}, contributors)

	assert.Empty(t, decisions)
	assert.Equal(t, 2, skipped)
}

// seedRulePrimary stores a rule primary (jdoe), its listed alias (johnd) and
// an unlisted near-match (jdoe1) that outscores jdoe in the primary election.
func seedRulePrimary(t *testing.T, store storage.Store) {
	t.Helper()
	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	res := store.SaveContributors(context.Background(), []models.Contributor{
		{ID: "jdoe", CanonicalName: "johndoe", Login: models.StringPtr("jdoe"), Email: models.StringPtr("jdoe@corp.example"), CreatedAt: base},
		{ID: "johnd", CanonicalName: "johnd", Login: models.StringPtr("johnd"), CreatedAt: base.Add(time.Minute)},
		{ID: "jdoe1", CanonicalName: "jd", Login: models.StringPtr("jdoe1"), Email: models.StringPtr("4411+jdoe1@users.noreply.github.com"), CreatedAt: base.Add(2 * time.Minute)},
	})
	require.True(t, res.OK(), "%v", res.Errors)
}

func TestRun_RulePrimarySurvivesAutomaticGrouping(t *testing.T) {
	store := setupStore(t)
	seedRulePrimary(t, store)
	ctx := context.Background()
	rules := []models.MergeRule{{PrimaryLogin: "jdoe", AlternateLogins: []string{"johnd"}}}

	// without the rule jdoe1 would win the election
	assert.Greater(t, PrimaryScore(contributor("jdoe1", "jdoe1", "4411+jdoe1@users.noreply.github.com", "jd")),
		PrimaryScore(contributor("jdoe", "jdoe", "jdoe@corp.example", "johndoe")))

	report, err := NewResolver(store, Options{}).Run(ctx, rules)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.ManualDecisions)
	require.Equal(t, 1, report.AutoDecisions)
	assert.Equal(t, 2, report.Merged)

	auto := report.Decisions[1]
	assert.Equal(t, "jdoe", auto.Primary.ID)
	assert.Equal(t, "jdoe1", auto.Duplicate.ID)
	assert.Equal(t, models.PriorityAutoMedium, auto.Priority)

	_, err = store.GetContributor(ctx, "jdoe")
	require.NoError(t, err)
	_, err = store.GetContributor(ctx, "jdoe1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// the rule still finds its primary on the next pass
	res := store.SaveContributors(ctx, []models.Contributor{
		{ID: "johnd2", CanonicalName: "johnd", Login: models.StringPtr("jd-alt"), CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.True(t, res.OK(), "%v", res.Errors)

	again, err := NewResolver(store, Options{}).Run(ctx, []models.MergeRule{
		{PrimaryLogin: "jdoe", AlternateLogins: []string{"jd-alt"}},
	})
	require.NoError(t, err)
	assert.Zero(t, again.RulesSkipped)
	assert.Equal(t, 1, again.ManualDecisions)
	assert.Equal(t, 1, again.Merged)
}

func TestPinPrimaries_NeverMergesTwoRulePrimaries(t *testing.T) {
	r := NewResolver(nil, Options{})
	seed := contributor("s", "sam", "", "sam")
	p1 := contributor("p1", "sam1", "", "sam")
	p2 := contributor("p2", "sam2", "", "sam")
	auto := []models.MergeDecision{
		{Primary: seed, Duplicate: p1, Similarity: 0.9, Priority: models.PriorityAutoHigh},
		{Primary: seed, Duplicate: p2, Similarity: 0.9, Priority: models.PriorityAutoHigh},
	}

	out := r.pinPrimaries(auto, map[string]bool{"p1": true, "p2": true})

	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].Primary.ID)
	assert.Equal(t, "s", out[0].Duplicate.ID)
	assert.InDelta(t, 1.0, out[0].Similarity, 1e-9)
	assert.Equal(t, models.PriorityAutoHigh, out[0].Priority)

	// an unpinned group passes through untouched
	assert.Equal(t, auto, r.pinPrimaries(auto, map[string]bool{"other": true}))
}
