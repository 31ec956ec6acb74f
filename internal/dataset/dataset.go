// Package dataset reads a YAML history export and writes it through the
// store's chunked batch writer.
package dataset

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/reviewscout/internal/models"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

// Dataset is the on-disk export format
type Dataset struct {
	Contributors   []Contributor   `yaml:"contributors"`
	Files          []File          `yaml:"files"`
	Contributions  []Contribution  `yaml:"contributions"`
	ReviewComments []ReviewComment `yaml:"review_comments"`
}

type Contributor struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Login string `yaml:"login"`
	Email string `yaml:"email"`
}

type File struct {
	Path        string `yaml:"path"`
	CurrentPath string `yaml:"current_path"`
}

type Contribution struct {
	Contributor string    `yaml:"contributor"`
	File        string    `yaml:"file"`
	Type        string    `yaml:"type"`
	At          time.Time `yaml:"at"`
	Lines       *int      `yaml:"lines"`
	ActivityID  string    `yaml:"activity_id"`
}

type ReviewComment struct {
	Contributor string    `yaml:"contributor"`
	ActivityID  string    `yaml:"activity_id"`
	File        string    `yaml:"file"`
	Body        string    `yaml:"body"`
	At          time.Time `yaml:"at"`
}

// Summary is the per-table outcome of a load
type Summary struct {
	Contributors   storage.BatchResult
	Files          storage.BatchResult
	Contributions  storage.BatchResult
	ReviewComments storage.BatchResult
}

// Total folds every table into one result
func (s Summary) Total() storage.BatchResult {
	var total storage.BatchResult
	total.Add(s.Contributors)
	total.Add(s.Files)
	total.Add(s.Contributions)
	total.Add(s.ReviewComments)
	return total
}

// Read parses a dataset file
func Read(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and checks a dataset document
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	declared := make(map[string]bool, len(ds.Contributors))
	for i, c := range ds.Contributors {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("contributor %d: id is required", i)
		}
		if declared[c.ID] {
			return nil, fmt.Errorf("contributor %d: duplicate id %q", i, c.ID)
		}
		declared[c.ID] = true
	}

	for i, c := range ds.Contributions {
		if !declared[c.Contributor] {
			return nil, fmt.Errorf("contribution %d: unknown contributor %q", i, c.Contributor)
		}
		switch models.ActivityType(c.Type) {
		case models.ActivityCommit, models.ActivityReview:
		default:
			return nil, fmt.Errorf("contribution %d: unknown type %q", i, c.Type)
		}
		if c.At.IsZero() {
			return nil, fmt.Errorf("contribution %d: timestamp is required", i)
		}
	}

	for i, c := range ds.ReviewComments {
		if !declared[c.Contributor] {
			return nil, fmt.Errorf("review comment %d: unknown contributor %q", i, c.Contributor)
		}
	}

	return &ds, nil
}

// Load writes contributors, then files, then contributions and comments.
// Every table is attempted even if an earlier one had failed chunks.
func (ds *Dataset) Load(ctx context.Context, store storage.Store) Summary {
	now := time.Now().UTC()

	contributors := make([]models.Contributor, 0, len(ds.Contributors))
	for i, c := range ds.Contributors {
		contributors = append(contributors, models.Contributor{
			ID:            c.ID,
			CanonicalName: models.CanonicalizeName(firstNonEmpty(c.Name, c.Login, c.Email)),
			Login:         models.StringPtr(c.Login),
			Email:         models.StringPtr(c.Email),
			IsPrimary:     true,
			// keep file order as first-seen order
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}

	files := make([]models.File, 0, len(ds.Files))
	for _, f := range ds.Files {
		files = append(files, models.File{
			CanonicalPath: f.Path,
			CurrentPath:   firstNonEmpty(f.CurrentPath, f.Path),
		})
	}

	contributions := make([]models.Contribution, 0, len(ds.Contributions))
	for _, c := range ds.Contributions {
		contributions = append(contributions, models.Contribution{
			ContributorID: c.Contributor,
			FilePath:      c.File,
			ActivityType:  models.ActivityType(c.Type),
			Timestamp:     c.At,
			LinesModified: c.Lines,
			ActivityID:    c.ActivityID,
		})
	}

	comments := make([]models.ReviewComment, 0, len(ds.ReviewComments))
	for _, c := range ds.ReviewComments {
		comments = append(comments, models.ReviewComment{
			ContributorID: c.Contributor,
			ActivityID:    c.ActivityID,
			FilePath:      c.File,
			Body:          c.Body,
			CreatedAt:     c.At,
		})
	}

	return Summary{
		Contributors:   store.SaveContributors(ctx, contributors),
		Files:          store.SaveFiles(ctx, files),
		Contributions:  store.SaveContributions(ctx, contributions),
		ReviewComments: store.SaveReviewComments(ctx, comments),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
