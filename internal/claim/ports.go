package claim

import "context"

// Tx is the view of the attempt log available inside a serialized claim.
type Tx interface {
	// LookupGrant returns the granted record for taskKey, if one exists.
	// It must be answerable from the (taskKey, wasGranted) index.
	LookupGrant(ctx context.Context, taskKey string) (AttemptRecord, bool, error)

	// Append durably writes rec and returns it with ID, Seq and CreatedAt assigned.
	Append(ctx context.Context, rec AttemptRecord) (AttemptRecord, error)
}

// Ledger serializes check-then-append sequences per TaskKey.
//
// Serialize runs fn with exclusive access to the attempts of taskKey. If fn
// returns an error, nothing fn appended may become visible.
type Ledger interface {
	Serialize(ctx context.Context, taskKey string, fn func(Tx) error) error
}

// Reader is the read-only side of an attempt store.
type Reader interface {
	// ByCommit returns every attempt for gitSha, newest first.
	ByCommit(ctx context.Context, gitSha string) ([]AttemptRecord, error)

	// PageBefore returns up to n records strictly older than after, ordered by
	// (AttemptedAt, Seq) descending. A nil cursor starts at the newest record.
	PageBefore(ctx context.Context, after *Cursor, n int) ([]AttemptRecord, error)

	// Scan streams every record to fn in unspecified order. Scanning stops at
	// the first error returned by fn.
	Scan(ctx context.Context, fn func(AttemptRecord) error) error

	// Ping performs a no-op round-trip to prove connectivity.
	Ping(ctx context.Context) error
}

// Store is a complete attempt store backend.
type Store interface {
	Ledger
	Reader
	Close() error
}
