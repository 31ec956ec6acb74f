package models

import (
	"strings"
	"time"
)

// ActivityType distinguishes the kinds of contribution facts
type ActivityType string

const (
	ActivityCommit ActivityType = "commit"
	ActivityReview ActivityType = "review"
)

// MergePriority ranks how a duplicate edge was discovered
type MergePriority string

const (
	PriorityManual     MergePriority = "manual"
	PriorityAutoHigh   MergePriority = "auto-high"
	PriorityAutoMedium MergePriority = "auto-medium"
)

// Rank orders priorities: manual > auto-high > auto-medium
func (p MergePriority) Rank() int {
	switch p {
	case PriorityManual:
		return 3
	case PriorityAutoHigh:
		return 2
	case PriorityAutoMedium:
		return 1
	default:
		return 0
	}
}

// Contributor is one identity in the project's contributor namespace.
// Login and Email are optional; nil means the value was never observed.
type Contributor struct {
	ID            string    `json:"id" db:"id"`
	CanonicalName string    `json:"canonical_name" db:"canonical_name"`
	Login         *string   `json:"login,omitempty" db:"login"`
	Email         *string   `json:"email,omitempty" db:"email"`
	IsPrimary     bool      `json:"is_primary" db:"is_primary"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// LoginValue returns the login or "" when absent
func (c Contributor) LoginValue() string {
	if c.Login == nil {
		return ""
	}
	return *c.Login
}

// EmailValue returns the email or "" when absent
func (c Contributor) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// DisplayName prefers the login, falling back to the canonical name
func (c Contributor) DisplayName() string {
	if login := c.LoginValue(); login != "" {
		return login
	}
	return c.CanonicalName
}

// CanonicalizeName lowercases a display name and strips everything that is not
// a letter or digit ("Jane O'Doe" -> "janeodoe").
func CanonicalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StringPtr returns nil for empty strings so optional columns stay NULL
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// File is a tracked path. CanonicalPath survives renames; CurrentPath follows them.
type File struct {
	CanonicalPath string `json:"canonical_path" db:"canonical_path"`
	CurrentPath   string `json:"current_path" db:"current_path"`
}

// Contribution is a single commit or review fact on one file
type Contribution struct {
	ID            int64        `json:"id" db:"id"`
	ContributorID string       `json:"contributor_id" db:"contributor_id"`
	FilePath      string       `json:"file_path" db:"file_path"` // canonical path
	ActivityType  ActivityType `json:"activity_type" db:"activity_type"`
	Timestamp     time.Time    `json:"timestamp" db:"timestamp"`
	LinesModified *int         `json:"lines_modified,omitempty" db:"lines_modified"`
	ActivityID    string       `json:"activity_id" db:"activity_id"` // commit sha or review/PR id
}

// ContributionRow is a contribution joined to its contributor and file identity
type ContributionRow struct {
	Contribution
	Login         *string `json:"login,omitempty" db:"login"`
	CanonicalName string  `json:"canonical_name" db:"canonical_name"`
	CurrentPath   string  `json:"current_path" db:"current_path"`
}

// ReviewComment is an inline review comment authored by a contributor
type ReviewComment struct {
	ID            int64     `json:"id" db:"id"`
	ContributorID string    `json:"contributor_id" db:"contributor_id"`
	ActivityID    string    `json:"activity_id" db:"activity_id"`
	FilePath      string    `json:"file_path" db:"file_path"`
	Body          string    `json:"body" db:"body"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DuplicateRecord is the audit trail of one merge edge. Records are never
// deleted, only flagged merged.
type DuplicateRecord struct {
	ID                     string        `json:"id" db:"id"`
	PrimaryContributorID   string        `json:"primary_contributor_id" db:"primary_contributor_id"`
	DuplicateContributorID string        `json:"duplicate_contributor_id" db:"duplicate_contributor_id"`
	Login                  *string       `json:"login,omitempty" db:"login"`
	Email                  *string       `json:"email,omitempty" db:"email"`
	CanonicalName          string        `json:"canonical_name" db:"canonical_name"`
	SimilarityScore        float64       `json:"similarity_score" db:"similarity_score"`
	MergePriority          MergePriority `json:"merge_priority" db:"merge_priority"`
	IsMerged               bool          `json:"is_merged" db:"is_merged"`
	Notes                  string        `json:"notes" db:"notes"`
	CreatedAt              time.Time     `json:"created_at" db:"created_at"`
	MergedAt               *time.Time    `json:"merged_at,omitempty" db:"merged_at"`
}

// MergeRule is a manual override: every alternate identity belongs to the
// contributor whose login is PrimaryLogin.
type MergeRule struct {
	PrimaryLogin    string   `json:"primary_login" yaml:"primary_login"`
	CanonicalName   string   `json:"canonical_name,omitempty" yaml:"canonical_name,omitempty"`
	AlternateLogins []string `json:"alternate_logins,omitempty" yaml:"alternate_logins,omitempty"`
	AlternateEmails []string `json:"alternate_emails,omitempty" yaml:"alternate_emails,omitempty"`
	AlternateNames  []string `json:"alternate_names,omitempty" yaml:"alternate_names,omitempty"`
	Notes           string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// MergeDecision says Duplicate should be folded into Primary
type MergeDecision struct {
	Primary    Contributor   `json:"primary"`
	Duplicate  Contributor   `json:"duplicate"`
	Similarity float64       `json:"similarity"`
	Priority   MergePriority `json:"priority"`
	Notes      string        `json:"notes,omitempty"`
}

// Record snapshots the duplicate's identifying fields into an unmerged DuplicateRecord
func (d MergeDecision) Record() DuplicateRecord {
	return DuplicateRecord{
		PrimaryContributorID:   d.Primary.ID,
		DuplicateContributorID: d.Duplicate.ID,
		Login:                  d.Duplicate.Login,
		Email:                  d.Duplicate.Email,
		CanonicalName:          d.Duplicate.CanonicalName,
		SimilarityScore:        d.Similarity,
		MergePriority:          d.Priority,
		Notes:                  d.Notes,
	}
}
