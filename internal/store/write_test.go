package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nxcoord/internal/claim"
	"github.com/roach88/nxcoord/internal/claim/claimtest"
	"github.com/roach88/nxcoord/internal/testutil"
)

func TestStoreSuite(t *testing.T) {
	claimtest.RunStoreSuite(t, func(t *testing.T, clock claim.Clock) claim.Store {
		return createTestStore(t, WithClock(clock))
	}, claimtest.Options{Transactional: true})
}

func TestAppend_AssignsSeqFromRowID(t *testing.T) {
	clock := testutil.NewDeterministicClock()
	s := createTestStore(t, WithClock(clock), WithIDGenerator(claim.NewSequenceGenerator("att")))
	ctx := context.Background()

	r1, err := s.Append(ctx, createTestAttempt("a", "p", "t", "s", 100, true))
	require.NoError(t, err)
	r2, err := s.Append(ctx, createTestAttempt("b", "p", "t", "s", 101, false))
	require.NoError(t, err)

	assert.Equal(t, "att-1", r1.ID)
	assert.Equal(t, "att-2", r2.ID)
	assert.Equal(t, int64(1), r1.Seq)
	assert.Equal(t, int64(2), r2.Seq)
	assert.Equal(t, testutil.Epoch.UnixMilli()+1, r1.CreatedAt)
}

func TestAppend_RoundTripsAllFields(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(claim.NewSequenceGenerator("att")))
	ctx := context.Background()

	in := createTestAttempt("agent:1", "proj:x", "build", "deadbeef", 1700000000123, true)
	stored, err := s.Append(ctx, in)
	require.NoError(t, err)

	got, err := s.ByCommit(ctx, "deadbeef")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stored, got[0])
	assert.Equal(t, `proj\:x:build:deadbeef`, got[0].TaskKey)
}

func TestAppend_DuplicateIDFails(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(fixedID("same")))
	ctx := context.Background()

	_, err := s.Append(ctx, createTestAttempt("a", "p", "t", "s", 1, true))
	require.NoError(t, err)
	_, err = s.Append(ctx, createTestAttempt("b", "p", "t", "s", 2, false))
	assert.Error(t, err)
}

func TestSerialize_AppendFailureRollsBackClaim(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(fixedID("same")))
	ctx := context.Background()

	_, err := s.Append(ctx, createTestAttempt("seed", "other", "t", "s", 1, true))
	require.NoError(t, err)

	// The arbiter's append collides on id; the verdict must be an error, not a denial.
	arb := claim.NewArbiter(s)
	_, err = arb.AttemptClaim(ctx, claim.ClaimRequest{AgentID: "a", Project: "p", Task: "t", GitSha: "s"})
	require.Error(t, err)
	assert.True(t, claim.IsStore(err))

	_, found, err := s.LookupGrant(ctx, claim.NewTaskKey("p", "t", "s").String())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSerialize_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Serialize(ctx, "k", func(claim.Tx) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestSerialize_CallbackErrorPassesThrough(t *testing.T) {
	s := createTestStore(t)
	sentinel := errors.New("sentinel")

	err := s.Serialize(context.Background(), "k", func(claim.Tx) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }
