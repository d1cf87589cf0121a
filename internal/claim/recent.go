package claim

import "strings"

// Page size limits for recent-attempt pagination.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// RecentFilter narrows a page of recent attempts. Zero values match everything.
type RecentFilter struct {
	Project      string
	Task         string
	WasGranted   *bool
	GitShaPrefix string
}

// Match reports whether rec passes every set filter.
func (f RecentFilter) Match(rec AttemptRecord) bool {
	if f.Project != "" && rec.Project != f.Project {
		return false
	}
	if f.Task != "" && rec.Task != f.Task {
		return false
	}
	if f.WasGranted != nil && rec.WasGranted != *f.WasGranted {
		return false
	}
	if f.GitShaPrefix != "" && !strings.HasPrefix(rec.GitSha, f.GitShaPrefix) {
		return false
	}
	return true
}

// normalize puts the string filters in the NFC form records are stored in.
func (f RecentFilter) normalize() RecentFilter {
	f.Project = normalizeComponent(f.Project)
	f.Task = normalizeComponent(f.Task)
	f.GitShaPrefix = normalizeComponent(f.GitShaPrefix)
	return f
}

// RecentQuery requests one page of the attempt log, newest first.
type RecentQuery struct {
	Filter RecentFilter
	Cursor string // opaque token from a previous Page.NextCursor
	Limit  int    // clamped by ClampLimit
}

// Page is one page of recent attempts.
//
// Attempts is the unfiltered page with filters applied afterwards, so it may
// hold fewer than the requested limit (even none) while NextCursor is still
// set. Callers page until NextCursor is empty.
type Page struct {
	Attempts   []AttemptRecord `json:"attempts" yaml:"attempts"`
	NextCursor string          `json:"nextCursor" yaml:"next_cursor"`
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// filterPage applies f to rows, never returning nil.
func filterPage(rows []AttemptRecord, f RecentFilter) []AttemptRecord {
	out := make([]AttemptRecord, 0, len(rows))
	for _, rec := range rows {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}
