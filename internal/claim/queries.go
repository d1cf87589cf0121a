package claim

import "context"

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the result of a connectivity check.
type Health struct {
	Status    string `json:"status" yaml:"status"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Queries is the read API consumed by dashboards and audits.
type Queries struct {
	reader Reader
	clock  Clock
}

// NewQueries creates a Queries over reader. A nil clock uses SystemClock.
func NewQueries(reader Reader, clock Clock) *Queries {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Queries{reader: reader, clock: clock}
}

// AttemptsForCommit returns every attempt tied to gitSha, newest first.
func (q *Queries) AttemptsForCommit(ctx context.Context, gitSha string) ([]AttemptRecord, error) {
	if gitSha == "" {
		return nil, NewValidationError("missing required field: gitSha", "gitSha")
	}
	recs, err := q.reader.ByCommit(ctx, normalizeComponent(gitSha))
	if err != nil {
		return nil, NewStoreError("attempts by commit", err)
	}
	if recs == nil {
		recs = []AttemptRecord{}
	}
	return recs, nil
}

// Recent returns one page of the attempt log, newest first.
//
// The page is read from the time index first and filtered afterwards, so a
// page can hold fewer than q.Limit matches. NextCursor is empty once the
// oldest record has been read.
func (q *Queries) Recent(ctx context.Context, rq RecentQuery) (Page, error) {
	cursor, err := DecodeCursor(rq.Cursor)
	if err != nil {
		return Page{}, err
	}
	limit := ClampLimit(rq.Limit)

	// One extra row tells us whether an older page exists.
	rows, err := q.reader.PageBefore(ctx, cursor, limit+1)
	if err != nil {
		return Page{}, NewStoreError("recent attempts", err)
	}

	page := Page{}
	if len(rows) > limit {
		rows = rows[:limit]
		page.NextCursor = CursorAfter(rows[limit-1]).Encode()
	}
	page.Attempts = filterPage(rows, rq.Filter.normalize())
	return page, nil
}

// Stats streams the whole attempt log once and returns aggregate counts.
func (q *Queries) Stats(ctx context.Context) (Stats, error) {
	acc := NewAccumulator(q.clock.Now())
	if err := q.reader.Scan(ctx, func(rec AttemptRecord) error {
		acc.Add(rec)
		return nil
	}); err != nil {
		return Stats{}, NewStoreError("aggregate stats", err)
	}
	return acc.Stats(), nil
}

// Health pings the store. It never returns an error; failures are reported
// in the Health value.
func (q *Queries) Health(ctx context.Context) Health {
	if err := q.reader.Ping(ctx); err != nil {
		return Health{Status: StatusUnhealthy, Timestamp: q.clock.Now().UnixMilli(), Error: err.Error()}
	}
	return Health{Status: StatusHealthy, Timestamp: q.clock.Now().UnixMilli()}
}

