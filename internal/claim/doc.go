// Package claim implements first-writer-wins claim arbitration for build tasks.
//
// A unit of work is identified by a TaskKey (project, task, commit). Every call
// to Arbiter.AttemptClaim appends exactly one immutable AttemptRecord to the
// attempt log. The first attempt for a key is granted; every later attempt is
// denied and cites the original grant.
//
// # Invariants
//
//   - At most one AttemptRecord per TaskKey has WasGranted = true.
//   - The granted record is the earliest attempt for its key.
//   - The attempt log is append-only; records are never updated or deleted.
//
// # Storage Ports
//
// The arbiter never talks to a database directly. It is constructed with a
// Ledger, whose Serialize method runs the check-then-append sequence with
// exclusive access to one TaskKey. Backends pick the mechanism:
//
//   - Transactional stores (internal/store, internal/pgstore) hold a write
//     transaction for the duration of the sequence.
//   - Non-transactional stores (internal/memstore) wrap the sequence in a
//     KeyLocker, a per-key mutex.
//
// Read-side consumers use Queries, which layers pagination, post-filtering
// and streaming aggregation over a backend Reader.
package claim
