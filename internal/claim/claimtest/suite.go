// Package claimtest provides a conformance suite for claim.Store backends.
//
// Each backend's tests call RunStoreSuite with a factory that returns a fresh,
// empty store. The suite covers the grant invariants under concurrency, the
// four read shapes, and rollback behavior for transactional backends.
package claimtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nxcoord/internal/claim"
	"github.com/roach88/nxcoord/internal/testutil"
)

// Factory returns a fresh, empty store using clock for store-assigned
// timestamps. The factory registers its own cleanup.
type Factory func(t *testing.T, clock claim.Clock) claim.Store

// Options describes backend capabilities.
type Options struct {
	// Transactional backends discard appends made by a failed Serialize callback.
	Transactional bool

	// ConcurrentClaims is the fan-out for the same-key race test. Default 1000.
	ConcurrentClaims int
}

// RunStoreSuite runs the conformance tests against newStore.
func RunStoreSuite(t *testing.T, newStore Factory, opts Options) {
	if opts.ConcurrentClaims == 0 {
		opts.ConcurrentClaims = 1000
	}

	t.Run("AppendAssignsIdentity", func(t *testing.T) { testAppendAssignsIdentity(t, newStore) })
	t.Run("LookupGrant", func(t *testing.T) { testLookupGrant(t, newStore) })
	t.Run("FirstClaimWins", func(t *testing.T) { testFirstClaimWins(t, newStore) })
	t.Run("DistinctShasAreIndependent", func(t *testing.T) { testDistinctShas(t, newStore) })
	t.Run("DuplicateResponseIsStable", func(t *testing.T) { testDuplicateResponseStable(t, newStore) })
	t.Run("ByCommitNewestFirst", func(t *testing.T) { testByCommit(t, newStore) })
	t.Run("RecentFiltersAndPages", func(t *testing.T) { testRecentPaging(t, newStore) })
	t.Run("RecentShortPagesAfterFilter", func(t *testing.T) { testRecentShortPages(t, newStore) })
	t.Run("StatsConsistency", func(t *testing.T) { testStats(t, newStore) })
	t.Run("ScanStopsOnCallbackError", func(t *testing.T) { testScanStops(t, newStore) })
	t.Run("Ping", func(t *testing.T) { testPing(t, newStore) })
	t.Run("ConcurrentSameKey", func(t *testing.T) { testConcurrentSameKey(t, newStore, opts.ConcurrentClaims) })
	if opts.Transactional {
		t.Run("FailedSerializeRollsBack", func(t *testing.T) { testRollback(t, newStore) })
	}
}

func setup(t *testing.T, newStore Factory) (claim.Store, *claim.Arbiter, *claim.Queries) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	st := newStore(t, clock)
	return st, claim.NewArbiter(st, claim.WithClock(clock)), claim.NewQueries(st, clock)
}

func claimOK(t *testing.T, arb *claim.Arbiter, agent, project, task, sha string) claim.Verdict {
	t.Helper()
	v, err := arb.AttemptClaim(context.Background(), claim.ClaimRequest{
		AgentID: agent, Project: project, Task: task, GitSha: sha,
	})
	require.NoError(t, err)
	return v
}

func scanAll(t *testing.T, st claim.Store) []claim.AttemptRecord {
	t.Helper()
	var out []claim.AttemptRecord
	require.NoError(t, st.Scan(context.Background(), func(rec claim.AttemptRecord) error {
		out = append(out, rec)
		return nil
	}))
	return out
}

func testAppendAssignsIdentity(t *testing.T, newStore Factory) {
	st := newStore(t, testutil.NewDeterministicClock())
	ctx := context.Background()

	var first, second claim.AttemptRecord
	require.NoError(t, st.Serialize(ctx, "p:t:s", func(tx claim.Tx) error {
		var err error
		first, err = tx.Append(ctx, claim.AttemptRecord{
			AgentID: "a", Project: "p", Task: "t", GitSha: "s", TaskKey: "p:t:s", AttemptedAt: 10, WasGranted: true,
		})
		if err != nil {
			return err
		}
		second, err = tx.Append(ctx, claim.AttemptRecord{
			AgentID: "b", Project: "p", Task: "t", GitSha: "s", TaskKey: "p:t:s", AttemptedAt: 11,
		})
		return err
	}))

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Greater(t, second.Seq, first.Seq)
	assert.Positive(t, first.CreatedAt)
	assert.Equal(t, "a", first.AgentID)
	assert.True(t, first.WasGranted)
	assert.False(t, second.WasGranted)
}

func testLookupGrant(t *testing.T, newStore Factory) {
	st, arb, _ := setup(t, newStore)
	ctx := context.Background()
	key := claim.NewTaskKey("proj1", "build", "sha1").String()

	err := st.Serialize(ctx, key, func(tx claim.Tx) error {
		_, found, err := tx.LookupGrant(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
	require.NoError(t, err)

	claimOK(t, arb, "agentA", "proj1", "build", "sha1")
	claimOK(t, arb, "agentB", "proj1", "build", "sha1")

	err = st.Serialize(ctx, key, func(tx claim.Tx) error {
		grant, found, err := tx.LookupGrant(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "agentA", grant.AgentID)
		assert.True(t, grant.WasGranted)
		return nil
	})
	require.NoError(t, err)
}

func testFirstClaimWins(t *testing.T, newStore Factory) {
	st, arb, _ := setup(t, newStore)

	v1 := claimOK(t, arb, "agentA", "proj1", "build", "sha1")
	assert.Equal(t, claim.Verdict{Acquired: true}, v1)

	v2 := claimOK(t, arb, "agentB", "proj1", "build", "sha1")
	assert.False(t, v2.Acquired)
	assert.Equal(t, "agentA", v2.ClaimedBy)

	recs := scanAll(t, st)
	require.Len(t, recs, 2)
	var granted claim.AttemptRecord
	for _, r := range recs {
		if r.WasGranted {
			granted = r
		}
	}
	assert.Equal(t, granted.AttemptedAt, v2.ClaimedAt)

	// The owner re-claiming is just another duplicate.
	v3 := claimOK(t, arb, "agentA", "proj1", "build", "sha1")
	assert.False(t, v3.Acquired)
	assert.Equal(t, "agentA", v3.ClaimedBy)
}

func testDistinctShas(t *testing.T, newStore Factory) {
	_, arb, _ := setup(t, newStore)

	assert.True(t, claimOK(t, arb, "agentA", "proj1", "build", "sha1").Acquired)
	assert.True(t, claimOK(t, arb, "agentB", "proj1", "build", "sha2").Acquired)
	assert.True(t, claimOK(t, arb, "agentB", "proj1", "test", "sha1").Acquired)
}

func testDuplicateResponseStable(t *testing.T, newStore Factory) {
	_, arb, _ := setup(t, newStore)

	claimOK(t, arb, "agentA", "proj1", "build", "sha1")
	first := claimOK(t, arb, "agentB", "proj1", "build", "sha1")
	for i := 0; i < 10; i++ {
		v := claimOK(t, arb, fmt.Sprintf("agent-%d", i), "proj1", "build", "sha1")
		assert.Equal(t, first, v)
	}
}

func testByCommit(t *testing.T, newStore Factory) {
	_, arb, q := setup(t, newStore)
	ctx := context.Background()

	claimOK(t, arb, "a1", "proj1", "build", "sha1")
	claimOK(t, arb, "a2", "proj1", "build", "sha1")
	claimOK(t, arb, "a3", "proj2", "lint", "sha1")
	claimOK(t, arb, "a4", "proj1", "build", "sha2")

	recs, err := q.AttemptsForCommit(ctx, "sha1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"a3", "a2", "a1"}, agents(recs))
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].AttemptedAt, recs[i].AttemptedAt)
	}

	none, err := q.AttemptsForCommit(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testRecentPaging(t *testing.T, newStore Factory) {
	_, arb, q := setup(t, newStore)
	ctx := context.Background()

	// 6 proj1 attempts interleaved with 6 proj2 attempts.
	for i := 0; i < 6; i++ {
		claimOK(t, arb, fmt.Sprintf("p1-%d", i), "proj1", "build", fmt.Sprintf("sha%d", i))
		claimOK(t, arb, fmt.Sprintf("p2-%d", i), "proj2", "build", fmt.Sprintf("sha%d", i))
	}

	page, err := q.Recent(ctx, claim.RecentQuery{Filter: claim.RecentFilter{Project: "proj1"}, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1-5", "p1-4", "p1-3", "p1-2", "p1-1", "p1-0"}, agents(page.Attempts))
	assert.Empty(t, page.NextCursor)

	// Unfiltered, four rows at a time.
	var all []string
	cursor := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "pagination did not terminate")
		page, err := q.Recent(ctx, claim.RecentQuery{Cursor: cursor, Limit: 4})
		require.NoError(t, err)
		all = append(all, agents(page.Attempts)...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []string{
		"p2-5", "p1-5", "p2-4", "p1-4", "p2-3", "p1-3",
		"p2-2", "p1-2", "p2-1", "p1-1", "p2-0", "p1-0",
	}, all)
}

func testRecentShortPages(t *testing.T, newStore Factory) {
	_, arb, q := setup(t, newStore)
	ctx := context.Background()

	claimOK(t, arb, "a", "proj1", "build", "abc123")
	claimOK(t, arb, "b", "proj1", "build", "abc123")
	for i := 0; i < 5; i++ {
		claimOK(t, arb, fmt.Sprintf("x%d", i), "proj2", "build", fmt.Sprintf("fff%d", i))
	}

	// Newest 3 rows are all proj2: the filtered page is empty but not final.
	page, err := q.Recent(ctx, claim.RecentQuery{Filter: claim.RecentFilter{Project: "proj1"}, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, page.Attempts)
	require.NotEmpty(t, page.NextCursor)

	page, err = q.Recent(ctx, claim.RecentQuery{Filter: claim.RecentFilter{Project: "proj1"}, Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, agents(page.Attempts))

	granted := false
	page, err = q.Recent(ctx, claim.RecentQuery{Filter: claim.RecentFilter{WasGranted: &granted, GitShaPrefix: "abc"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, agents(page.Attempts))
	assert.Empty(t, page.NextCursor)
}

func testStats(t *testing.T, newStore Factory) {
	_, arb, q := setup(t, newStore)
	ctx := context.Background()

	claimOK(t, arb, "a", "proj1", "build", "sha1")
	claimOK(t, arb, "b", "proj1", "build", "sha1")
	claimOK(t, arb, "c", "proj1", "test", "sha1")
	claimOK(t, arb, "d", "proj2", "build", "sha1")
	claimOK(t, arb, "e", "proj2", "build", "sha1")
	claimOK(t, arb, "f", "proj2", "build", "sha1")

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.TotalAttempts)
	assert.Equal(t, int64(6), stats.AttemptsLast24h)
	assert.Equal(t, int64(3), stats.DuplicatesBlocked)
	assert.Equal(t, int64(3), stats.DuplicatesBlockedLast24h)
	assert.Equal(t, []claim.ProjectTally{
		{Project: "proj1", Total: 3, Blocked: 1},
		{Project: "proj2", Total: 3, Blocked: 2},
	}, stats.ByProject)
	assert.Equal(t, []claim.TaskTally{
		{Task: "build", Total: 5, Blocked: 3},
		{Task: "test", Total: 1, Blocked: 0},
	}, stats.ByTask)
}

func testScanStops(t *testing.T, newStore Factory) {
	st, arb, _ := setup(t, newStore)
	for i := 0; i < 3; i++ {
		claimOK(t, arb, "a", "p", "t", fmt.Sprintf("s%d", i))
	}

	stop := errors.New("stop")
	visited := 0
	err := st.Scan(context.Background(), func(claim.AttemptRecord) error {
		visited++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)
}

func testPing(t *testing.T, newStore Factory) {
	_, _, q := setup(t, newStore)
	h := q.Health(context.Background())
	assert.Equal(t, claim.StatusHealthy, h.Status)
	assert.Positive(t, h.Timestamp)
	assert.Empty(t, h.Error)
}

func testConcurrentSameKey(t *testing.T, newStore Factory, n int) {
	st, arb, _ := setup(t, newStore)
	ctx := context.Background()

	verdicts := make([]claim.Verdict, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			verdicts[i], errs[i] = arb.AttemptClaim(ctx, claim.ClaimRequest{
				AgentID: fmt.Sprintf("agent-%04d", i),
				Project: "proj1",
				Task:    "build",
				GitSha:  "sha1",
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	granted := 0
	for _, v := range verdicts {
		if v.Acquired {
			granted++
		}
	}
	require.Equal(t, 1, granted, "exactly one claim must be granted")

	recs := scanAll(t, st)
	require.Len(t, recs, n, "one record per attempt")

	var grant claim.AttemptRecord
	grants := 0
	for _, r := range recs {
		if r.WasGranted {
			grant = r
			grants++
		}
	}
	require.Equal(t, 1, grants)

	for _, r := range recs {
		assert.LessOrEqual(t, grant.AttemptedAt, r.AttemptedAt)
	}
	for _, v := range verdicts {
		if v.Acquired {
			continue
		}
		assert.Equal(t, grant.AgentID, v.ClaimedBy)
		assert.Equal(t, grant.AttemptedAt, v.ClaimedAt)
	}
}

func testRollback(t *testing.T, newStore Factory) {
	st, arb, _ := setup(t, newStore)
	ctx := context.Background()
	key := claim.NewTaskKey("proj1", "build", "sha1").String()

	boom := errors.New("boom")
	err := st.Serialize(ctx, key, func(tx claim.Tx) error {
		_, err := tx.Append(ctx, claim.AttemptRecord{
			AgentID: "ghost", Project: "proj1", Task: "build", GitSha: "sha1", TaskKey: key, AttemptedAt: 1, WasGranted: true,
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, scanAll(t, st))

	// The rolled-back grant must not block a real claim.
	assert.True(t, claimOK(t, arb, "agentA", "proj1", "build", "sha1").Acquired)
}

func agents(recs []claim.AttemptRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.AgentID
	}
	return out
}
