package claim

import (
	"context"
	"log/slog"
)

// Arbiter decides, per TaskKey, which claim attempt is first.
//
// Every AttemptClaim call appends exactly one AttemptRecord whether or not the
// claim is granted; the attempt log is both the arbitration state and the
// audit trail.
//
// Thread-safety: Arbiter is safe for concurrent use. Correctness under
// concurrency is delegated to the Ledger's Serialize.
type Arbiter struct {
	ledger Ledger
	clock  Clock
	logger *slog.Logger
}

// ArbiterOption configures an Arbiter.
type ArbiterOption func(*Arbiter)

// WithClock sets the clock used to stamp AttemptedAt.
func WithClock(c Clock) ArbiterOption {
	return func(a *Arbiter) {
		a.clock = c
	}
}

// WithLogger sets the logger used for verdict diagnostics.
func WithLogger(l *slog.Logger) ArbiterOption {
	return func(a *Arbiter) {
		a.logger = l
	}
}

// NewArbiter creates an Arbiter backed by ledger.
func NewArbiter(ledger Ledger, opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{
		ledger: ledger,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AttemptClaim records an attempt by req.AgentID to claim req's TaskKey.
//
// The first attempt for a key is granted. Later attempts, including repeats by
// the granted agent, are denied and report the agent and time of the grant.
//
// Errors are *Error values: ErrCodeValidation before any store access, or
// ErrCodeStore when the lookup or append failed. On error no record is
// observably appended.
func (a *Arbiter) AttemptClaim(ctx context.Context, req ClaimRequest) (Verdict, error) {
	if err := req.Validate(); err != nil {
		return Verdict{}, err
	}
	req = req.Normalize()
	key := req.Key().String()

	var verdict Verdict
	err := a.ledger.Serialize(ctx, key, func(tx Tx) error {
		grant, found, err := tx.LookupGrant(ctx, key)
		if err != nil {
			return NewStoreError("lookup grant", err)
		}

		// Stamped inside the serialized section so a grant is never later
		// than the denials ordered after it.
		rec := AttemptRecord{
			AgentID:     req.AgentID,
			GitSha:      req.GitSha,
			Project:     req.Project,
			Task:        req.Task,
			TaskKey:     key,
			AttemptedAt: a.clock.Now().UnixMilli(),
			WasGranted:  !found,
		}
		if _, err := tx.Append(ctx, rec); err != nil {
			return NewStoreError("append attempt", err)
		}

		if found {
			verdict = Verdict{Acquired: false, ClaimedBy: grant.AgentID, ClaimedAt: grant.AttemptedAt}
		} else {
			verdict = Verdict{Acquired: true}
		}
		return nil
	})
	if err != nil {
		if CodeOf(err) == "" {
			err = NewStoreError("serialize claim", err)
		}
		return Verdict{}, err
	}

	a.logger.Debug("claim attempt",
		"task_key", key,
		"agent_id", req.AgentID,
		"granted", verdict.Acquired,
		"claimed_by", verdict.ClaimedBy,
	)
	return verdict, nil
}
