package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ContributorFilter selects contributors. Logins, Emails and CanonicalNames are
// compared case-insensitively and OR-ed together; when all three are empty
// every contributor matches.
type ContributorFilter struct {
	Logins         []string
	Emails         []string
	CanonicalNames []string
	PrimaryOnly    bool
}

// ContributionQuery selects contribution facts joined to contributor and file.
type ContributionQuery struct {
	Paths []string // canonical or current path; empty means all files
	Types []models.ActivityType
	Since time.Time // inclusive; zero means unbounded
	Until time.Time // zero means unbounded
	// UntilInclusive switches Until from "<" to "<="
	UntilInclusive        bool
	ExcludeContributorIDs []string
}

// DuplicateFilter selects duplicate records
type DuplicateFilter struct {
	UnmergedOnly           bool
	DuplicateContributorID string
}

// Store is the query contract required by identity resolution and scoring.
type Store interface {
	// Contributor operations
	ListContributors(ctx context.Context, filter ContributorFilter) ([]models.Contributor, error)
	GetContributor(ctx context.Context, id string) (*models.Contributor, error)
	SaveContributors(ctx context.Context, contributors []models.Contributor) BatchResult
	DeleteContributor(ctx context.Context, id string) error

	// ReassignContributor moves every contribution and review comment from
	// fromID to toID and clears fromID's primary flag, in one transaction.
	ReassignContributor(ctx context.Context, fromID, toID string) (int64, error)

	// File and contribution operations
	SaveFiles(ctx context.Context, files []models.File) BatchResult
	SaveContributions(ctx context.Context, contributions []models.Contribution) BatchResult
	SaveReviewComments(ctx context.Context, comments []models.ReviewComment) BatchResult
	ListContributions(ctx context.Context, query ContributionQuery) ([]models.ContributionRow, error)
	CountContributions(ctx context.Context, contributorID string) (int, error)

	// Duplicate record operations
	UpsertDuplicateRecord(ctx context.Context, record *models.DuplicateRecord) error
	ListDuplicateRecords(ctx context.Context, filter DuplicateFilter) ([]models.DuplicateRecord, error)
	MarkDuplicateMerged(ctx context.Context, primaryID, duplicateID string, at time.Time) error

	// Close connection
	Close() error
}
