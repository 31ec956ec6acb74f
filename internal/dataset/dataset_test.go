package dataset

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/reviewscout/internal/storage"
)

const sample = `
contributors:
  - id: u1
    name: Ann Lee
    login: ann
    email: ann@x.com
  - id: u2
    login: raj-7
files:
  - path: src/old.go
    current_path: src/new.go
  - path: README.md
contributions:
  - contributor: u1
    file: src/old.go
    type: commit
    at: 2024-05-01T10:00:00Z
    lines: 12
    activity_id: abc123
  - contributor: u2
    file: src/old.go
    type: review
    at: 2024-05-02T09:30:00Z
    activity_id: pr-9
  - contributor: u2
    file: missing.go
    type: review
    at: 2024-05-02T09:30:00Z
    activity_id: pr-9
review_comments:
  - contributor: u2
    activity_id: pr-9
    file: src/old.go
    body: looks good
    at: 2024-05-02T09:31:00Z
`

func TestParse(t *testing.T) {
	ds, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Len(t, ds.Contributors, 2)
	assert.Len(t, ds.Contributions, 3)
	require.NotNil(t, ds.Contributions[0].Lines)
	assert.Equal(t, 12, *ds.Contributions[0].Lines)

	_, err = Parse([]byte("contributions:\n  - contributor: u1\n    type: deploy\n    at: 2024-01-01T00:00:00Z\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("contributions:\n  - contributor: u1\n    type: commit\n"))
	assert.Error(t, err)
}

func TestParse_ContributorReferences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing id",
			doc:  "contributors:\n  - login: ann\n",
			want: "contributor 0: id is required",
		},
		{
			name: "duplicate id",
			doc:  "contributors:\n  - id: u1\n  - id: u1\n",
			want: `contributor 1: duplicate id "u1"`,
		},
		{
			name: "undeclared contribution author",
			doc: "contributors:\n  - id: u1\ncontributions:\n" +
				"  - contributor: u9\n    file: a.go\n    type: commit\n    at: 2024-01-01T00:00:00Z\n",
			want: `contribution 0: unknown contributor "u9"`,
		},
		{
			name: "undeclared comment author",
			doc:  "contributors:\n  - id: u1\nreview_comments:\n  - contributor: u2\n    activity_id: pr-1\n",
			want: `review comment 0: unknown contributor "u2"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store, err := storage.NewSQLiteStore(":memory:", logger, storage.BatchOptions{Size: 1})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	ds, err := Parse([]byte(sample))
	require.NoError(t, err)

	summary := ds.Load(ctx, store)
	assert.True(t, summary.Contributors.OK())
	assert.True(t, summary.Files.OK())
	assert.Equal(t, 2, summary.Contributions.Succeeded)
	assert.Equal(t, 1, summary.Contributions.Failed)
	assert.True(t, summary.ReviewComments.OK())

	total := summary.Total()
	assert.Equal(t, 8, total.Attempted)
	assert.Equal(t, 1, total.Failed)
	assert.False(t, total.OK())

	contributors, err := store.ListContributors(ctx, storage.ContributorFilter{})
	require.NoError(t, err)
	require.Len(t, contributors, 2)
	assert.Equal(t, "annlee", contributors[0].CanonicalName)
	assert.Equal(t, "raj7", contributors[1].CanonicalName)

	rows, err := store.ListContributions(ctx, storage.ContributionQuery{Paths: []string{"src/new.go"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
