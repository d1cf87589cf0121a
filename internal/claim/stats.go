package claim

import (
	"sort"
	"time"
)

// StatsWindow is the trailing window for the "last 24h" counters.
const StatsWindow = 24 * time.Hour

// Stats summarizes the whole attempt log.
type Stats struct {
	TotalAttempts            int64          `json:"totalAttempts" yaml:"total_attempts"`
	AttemptsLast24h          int64          `json:"attemptsLast24h" yaml:"attempts_last_24h"`
	DuplicatesBlocked        int64          `json:"duplicatesBlocked" yaml:"duplicates_blocked"`
	DuplicatesBlockedLast24h int64          `json:"duplicatesBlockedLast24h" yaml:"duplicates_blocked_last_24h"`
	ByProject                []ProjectTally `json:"byProject" yaml:"by_project"`
	ByTask                   []TaskTally    `json:"byTask" yaml:"by_task"`
}

// ProjectTally counts attempts for one project.
type ProjectTally struct {
	Project string `json:"project" yaml:"project"`
	Total   int64  `json:"total" yaml:"total"`
	Blocked int64  `json:"blocked" yaml:"blocked"`
}

// TaskTally counts attempts for one task name.
type TaskTally struct {
	Task    string `json:"task" yaml:"task"`
	Total   int64  `json:"total" yaml:"total"`
	Blocked int64  `json:"blocked" yaml:"blocked"`
}

type tally struct {
	total   int64
	blocked int64
}

// Accumulator builds Stats one record at a time. Memory is proportional to
// the number of distinct projects and tasks, not to the number of records.
type Accumulator struct {
	since     int64
	stats     Stats
	byProject map[string]*tally
	byTask    map[string]*tally
}

// NewAccumulator creates an Accumulator whose 24h window ends at now.
func NewAccumulator(now time.Time) *Accumulator {
	return &Accumulator{
		since:     now.Add(-StatsWindow).UnixMilli(),
		byProject: make(map[string]*tally),
		byTask:    make(map[string]*tally),
	}
}

// Add counts rec.
func (a *Accumulator) Add(rec AttemptRecord) {
	recent := rec.AttemptedAt >= a.since

	a.stats.TotalAttempts++
	if recent {
		a.stats.AttemptsLast24h++
	}
	if !rec.WasGranted {
		a.stats.DuplicatesBlocked++
		if recent {
			a.stats.DuplicatesBlockedLast24h++
		}
	}

	bump(a.byProject, rec.Project, rec.WasGranted)
	bump(a.byTask, rec.Task, rec.WasGranted)
}

// Stats returns the totals so far. Tallies are sorted by name.
func (a *Accumulator) Stats() Stats {
	out := a.stats
	out.ByProject = make([]ProjectTally, 0, len(a.byProject))
	for name, t := range a.byProject {
		out.ByProject = append(out.ByProject, ProjectTally{Project: name, Total: t.total, Blocked: t.blocked})
	}
	sort.Slice(out.ByProject, func(i, j int) bool { return out.ByProject[i].Project < out.ByProject[j].Project })

	out.ByTask = make([]TaskTally, 0, len(a.byTask))
	for name, t := range a.byTask {
		out.ByTask = append(out.ByTask, TaskTally{Task: name, Total: t.total, Blocked: t.blocked})
	}
	sort.Slice(out.ByTask, func(i, j int) bool { return out.ByTask[i].Task < out.ByTask[j].Task })
	return out
}

func bump(m map[string]*tally, name string, granted bool) {
	t, ok := m[name]
	if !ok {
		t = &tally{}
		m[name] = t
	}
	t.total++
	if !granted {
		t.blocked++
	}
}
