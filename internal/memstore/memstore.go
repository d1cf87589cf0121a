// Package memstore provides an in-memory attempt store.
//
// It serializes claims with a per-key claim.KeyLocker rather than a
// transaction, and keeps the same indexes as the durable stores: grants by
// task key, attempts by commit, and a time index for pagination. Contents are
// lost when the process exits.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/roach88/nxcoord/internal/claim"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memstore: closed")

// Store is an in-memory claim.Store.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []claim.AttemptRecord // append order; records[i].Seq == i+1
	grants  map[string]int        // task key -> index of granted record
	commits map[string][]int      // git sha -> indexes in append order
	byTime  []int                 // indexes sorted by (AttemptedAt, Seq) ascending
	closed  bool

	ledger *claim.LockedLedger
	clock claim.Clock
	ids   claim.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for CreatedAt.
func WithClock(c claim.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithIDGenerator sets the generator for record IDs.
func WithIDGenerator(g claim.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		grants:  make(map[string]int),
		commits: make(map[string][]int),
		clock:   claim.SystemClock{},
		ids:     claim.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = claim.NewLockedLedger(s)
	return s
}

// Serialize runs fn while holding the per-key lock for taskKey.
// Append is the last step of a claim, so a failed fn leaves no trace.
func (s *Store) Serialize(ctx context.Context, taskKey string, fn func(claim.Tx) error) error {
	return s.ledger.Serialize(ctx, taskKey, fn)
}

// LookupGrant returns the granted record for taskKey, if any.
func (s *Store) LookupGrant(ctx context.Context, taskKey string) (claim.AttemptRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return claim.AttemptRecord{}, false, ErrClosed
	}
	idx, ok := s.grants[taskKey]
	if !ok {
		return claim.AttemptRecord{}, false, nil
	}
	return s.records[idx], true, nil
}

// Append stores rec, assigning ID, Seq and CreatedAt.
func (s *Store) Append(ctx context.Context, rec claim.AttemptRecord) (claim.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return claim.AttemptRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return claim.AttemptRecord{}, ErrClosed
	}

	idx := len(s.records)
	rec.ID = s.ids.Generate()
	rec.Seq = int64(idx + 1)
	rec.CreatedAt = s.clock.Now().UnixMilli()
	s.records = append(s.records, rec)

	if _, ok := s.grants[rec.TaskKey]; rec.WasGranted && !ok {
		s.grants[rec.TaskKey] = idx
	}
	s.commits[rec.GitSha] = append(s.commits[rec.GitSha], idx)

	pos := sort.Search(len(s.byTime), func(i int) bool {
		return !s.less(s.byTime[i], idx)
	})
	s.byTime = append(s.byTime, 0)
	copy(s.byTime[pos+1:], s.byTime[pos:])
	s.byTime[pos] = idx

	return rec, nil
}

// less orders record indexes by (AttemptedAt, Seq) ascending.
func (s *Store) less(i, j int) bool {
	a, b := s.records[i], s.records[j]
	if a.AttemptedAt != b.AttemptedAt {
		return a.AttemptedAt < b.AttemptedAt
	}
	return a.Seq < b.Seq
}

// ByCommit returns attempts for gitSha ordered by AttemptedAt descending.
func (s *Store) ByCommit(ctx context.Context, gitSha string) ([]claim.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	idxs := s.commits[gitSha]
	out := make([]claim.AttemptRecord, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, s.records[idx])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AttemptedAt != out[j].AttemptedAt {
			return out[i].AttemptedAt > out[j].AttemptedAt
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

// PageBefore walks the time index from the newest record down.
func (s *Store) PageBefore(ctx context.Context, after *claim.Cursor, n int) ([]claim.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]claim.AttemptRecord, 0, n)
	for i := len(s.byTime) - 1; i >= 0 && len(out) < n; i-- {
		rec := s.records[s.byTime[i]]
		if after != nil && !after.Before(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Scan streams records in append order. Records appended after Scan starts
// are not visited. fn runs without the store lock held.
func (s *Store) Scan(ctx context.Context, fn func(claim.AttemptRecord) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	snapshot := s.records[:len(s.records):len(s.records)]
	s.mu.RUnlock()

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close discards the store. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ claim.Store = (*Store)(nil)
