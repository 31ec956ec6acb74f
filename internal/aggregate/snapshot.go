package aggregate

import (
	"time"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// Candidate identifies a potential reviewer
type Candidate struct {
	ID            string
	Login         string
	CanonicalName string
}

// DisplayName prefers the login
func (c Candidate) DisplayName() string {
	if c.Login != "" {
		return c.Login
	}
	return c.CanonicalName
}

// ReviewCount is one contributor's review total in a workload window
type ReviewCount struct {
	Candidate
	Reviews int
}

// Activity holds counts, review days and latest timestamps for one scope
// (a whole file, or one developer on one file).
type Activity struct {
	Reviews    int
	Commits    int
	ReviewDays map[string]struct{}
	LastReview time.Time // zero when there is none
	LastCommit time.Time
}

func newActivity() *Activity {
	return &Activity{ReviewDays: make(map[string]struct{})}
}

func (a *Activity) add(row models.ContributionRow) {
	ts := row.Timestamp.UTC()
	switch row.ActivityType {
	case models.ActivityReview:
		a.Reviews++
		a.ReviewDays[dayKey(ts)] = struct{}{}
		if ts.After(a.LastReview) {
			a.LastReview = ts
		}
	case models.ActivityCommit:
		a.Commits++
		if ts.After(a.LastCommit) {
			a.LastCommit = ts
		}
	}
}

// FileStats aggregates one changed file
type FileStats struct {
	Path string
	Activity
	// ByDeveloper is keyed by contributor id
	ByDeveloper map[string]*Activity
}

// WindowStats is one contributor's project-wide activity inside [T-W, T]
type WindowStats struct {
	Activity     int
	ActiveMonths map[string]struct{}
}

// Snapshot is everything scoring needs about one change set
type Snapshot struct {
	ReferenceTime time.Time
	WindowStart   time.Time
	Files         []string
	FileStats     map[string]*FileStats
	Window        map[string]*WindowStats
	WindowTotal   int
	Candidates    map[string]Candidate
	// candidateOrder is first-seen order, used for stable ranking
	candidateOrder []string
	// pathIndex maps canonical and current paths to the requested path
	pathIndex map[string]string
}

// NewSnapshot creates an empty snapshot for already-normalized files
func NewSnapshot(t, windowStart time.Time, files []string) *Snapshot {
	s := &Snapshot{
		ReferenceTime: t,
		WindowStart:   windowStart,
		Files:         files,
		FileStats:     make(map[string]*FileStats, len(files)),
		Window:        make(map[string]*WindowStats),
		Candidates:    make(map[string]Candidate),
		pathIndex:     make(map[string]string, len(files)),
	}
	for _, f := range files {
		s.FileStats[f] = &FileStats{
			Path:        f,
			Activity:    *newActivity(),
			ByDeveloper: make(map[string]*Activity),
		}
		s.pathIndex[f] = f
	}
	return s
}

// AddHistory folds in one pre-T fact; rows for other files are ignored
func (s *Snapshot) AddHistory(row models.ContributionRow) {
	path, ok := s.pathIndex[row.CurrentPath]
	if !ok {
		if path, ok = s.pathIndex[row.FilePath]; !ok {
			return
		}
	}

	fs := s.FileStats[path]
	fs.add(row)

	dev, ok := fs.ByDeveloper[row.ContributorID]
	if !ok {
		dev = newActivity()
		fs.ByDeveloper[row.ContributorID] = dev
	}
	dev.add(row)

	s.noteCandidate(row)
}

// AddWindow folds in one fact from the project window
func (s *Snapshot) AddWindow(row models.ContributionRow) {
	ws, ok := s.Window[row.ContributorID]
	if !ok {
		ws = &WindowStats{ActiveMonths: make(map[string]struct{})}
		s.Window[row.ContributorID] = ws
	}
	ws.Activity++
	ws.ActiveMonths[monthKey(row.Timestamp.UTC())] = struct{}{}
	s.WindowTotal++

	s.noteCandidate(row)
}

func (s *Snapshot) noteCandidate(row models.ContributionRow) {
	if _, ok := s.Candidates[row.ContributorID]; ok {
		return
	}
	s.Candidates[row.ContributorID] = candidateFromRow(row)
	s.candidateOrder = append(s.candidateOrder, row.ContributorID)
}

// CandidateIDs returns candidates in first-seen order
func (s *Snapshot) CandidateIDs() []string {
	out := make([]string, len(s.candidateOrder))
	copy(out, s.candidateOrder)
	return out
}

// KnownFiles lists the changed files the contributor has history on
func (s *Snapshot) KnownFiles(contributorID string) []string {
	var known []string
	for _, f := range s.Files {
		if _, ok := s.FileStats[f].ByDeveloper[contributorID]; ok {
			known = append(known, f)
		}
	}
	return known
}

// MonthsSpanned counts the distinct calendar months touched by [T-W, T]
func (s *Snapshot) MonthsSpanned() int {
	start, end := s.WindowStart.UTC(), s.ReferenceTime.UTC()
	return (end.Year()*12 + int(end.Month())) - (start.Year()*12 + int(start.Month())) + 1
}

func candidateFromRow(row models.ContributionRow) Candidate {
	c := Candidate{ID: row.ContributorID, CanonicalName: row.CanonicalName}
	if row.Login != nil {
		c.Login = *row.Login
	}
	return c
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}
