package claim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	err       error
	rows      []AttemptRecord // newest first
	pageArg   int
	commitArg string
}

func (r *fakeReader) ByCommit(_ context.Context, gitSha string) ([]AttemptRecord, error) {
	r.commitArg = gitSha
	return nil, r.err
}

func (r *fakeReader) PageBefore(_ context.Context, after *Cursor, n int) ([]AttemptRecord, error) {
	r.pageArg = n
	if r.err != nil {
		return nil, r.err
	}
	var out []AttemptRecord
	for _, rec := range r.rows {
		if after != nil && !after.Before(rec) {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *fakeReader) Scan(_ context.Context, fn func(AttemptRecord) error) error {
	if r.err != nil {
		return r.err
	}
	for _, rec := range r.rows {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeReader) Ping(context.Context) error { return r.err }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func TestQueries_Recent_FetchesOneExtraRow(t *testing.T) {
	r := &fakeReader{}
	q := NewQueries(r, nil)

	_, err := q.Recent(context.Background(), RecentQuery{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit+1, r.pageArg)

	_, err = q.Recent(context.Background(), RecentQuery{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit+1, r.pageArg)
}

func TestQueries_Recent_CursorStopsAtEnd(t *testing.T) {
	r := &fakeReader{rows: []AttemptRecord{
		{AgentID: "c", AttemptedAt: 3, Seq: 3},
		{AgentID: "b", AttemptedAt: 2, Seq: 2},
	}}
	q := NewQueries(r, nil)

	page, err := q.Recent(context.Background(), RecentQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Attempts, 2)
	assert.Empty(t, page.NextCursor, "no empty trailing page")

	page, err = q.Recent(context.Background(), RecentQuery{Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, page.NextCursor)
	page, err = q.Recent(context.Background(), RecentQuery{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, "b", page.Attempts[0].AgentID)
	assert.Empty(t, page.NextCursor)
}

func TestQueries_Recent_BadCursor(t *testing.T) {
	q := NewQueries(&fakeReader{}, nil)
	_, err := q.Recent(context.Background(), RecentQuery{Cursor: "%%%"})
	assert.True(t, IsValidation(err))
}

func TestQueries_StoreFailures(t *testing.T) {
	q := NewQueries(&fakeReader{err: errors.New("unreachable")}, nil)
	ctx := context.Background()

	_, err := q.AttemptsForCommit(ctx, "sha")
	assert.True(t, IsStore(err))
	_, err = q.Recent(ctx, RecentQuery{})
	assert.True(t, IsStore(err))
	_, err = q.Stats(ctx)
	assert.True(t, IsStore(err))
}

func TestQueries_AttemptsForCommit_RequiresSha(t *testing.T) {
	q := NewQueries(&fakeReader{}, nil)
	_, err := q.AttemptsForCommit(context.Background(), "")
	assert.True(t, IsValidation(err))
}

func TestQueries_Health(t *testing.T) {
	now := time.UnixMilli(1234)

	h := NewQueries(&fakeReader{}, fixedClock(now)).Health(context.Background())
	assert.Equal(t, Health{Status: StatusHealthy, Timestamp: 1234}, h)

	h = NewQueries(&fakeReader{err: errors.New("refused")}, fixedClock(now)).Health(context.Background())
	assert.Equal(t, Health{Status: StatusUnhealthy, Timestamp: 1234, Error: "refused"}, h)
}

func TestQueries_LookupsUseNormalizedForm(t *testing.T) {
	r := &fakeReader{rows: []AttemptRecord{
		{Seq: 2, AttemptedAt: 20, Project: "caf\u00e9", GitSha: "\u00e9a1"},
		{Seq: 1, AttemptedAt: 10, Project: "web", GitSha: "b2"},
	}}
	q := NewQueries(r, nil)
	ctx := context.Background()

	_, err := q.AttemptsForCommit(ctx, "e\u0301a1")
	require.NoError(t, err)
	assert.Equal(t, "\u00e9a1", r.commitArg)

	page, err := q.Recent(ctx, RecentQuery{Filter: RecentFilter{Project: "cafe\u0301", GitShaPrefix: "e\u0301"}})
	require.NoError(t, err)
	require.Len(t, page.Attempts, 1)
	assert.Equal(t, int64(2), page.Attempts[0].Seq)
}
