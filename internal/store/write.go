package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/nxcoord/internal/claim"
)

// execer is the subset of *sql.DB and *sql.Tx used by append and lookup.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Serialize runs fn inside an immediate write transaction.
//
// The transaction commits only if fn returns nil; otherwise it rolls back and
// nothing fn appended is kept.
func (s *Store) Serialize(ctx context.Context, taskKey string, fn func(claim.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("serialize %s: begin tx: %w", taskKey, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&txView{store: s, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("serialize %s: commit: %w", taskKey, err)
	}
	return nil
}

// LookupGrant returns the granted record for taskKey outside any transaction.
func (s *Store) LookupGrant(ctx context.Context, taskKey string) (claim.AttemptRecord, bool, error) {
	return lookupGrant(ctx, s.db, taskKey)
}

// Append inserts rec outside any claim transaction.
// Prefer Serialize for claims; Append exists for imports and tests.
func (s *Store) Append(ctx context.Context, rec claim.AttemptRecord) (claim.AttemptRecord, error) {
	return s.appendWith(ctx, s.db, rec)
}

// txView is the claim.Tx handed to Serialize callbacks.
type txView struct {
	store *Store
	q     execer
}

func (v *txView) LookupGrant(ctx context.Context, taskKey string) (claim.AttemptRecord, bool, error) {
	return lookupGrant(ctx, v.q, taskKey)
}

func (v *txView) Append(ctx context.Context, rec claim.AttemptRecord) (claim.AttemptRecord, error) {
	return v.store.appendWith(ctx, v.q, rec)
}

// appendWith inserts rec, assigning ID, CreatedAt and Seq (the row id).
func (s *Store) appendWith(ctx context.Context, q execer, rec claim.AttemptRecord) (claim.AttemptRecord, error) {
	rec.ID = s.ids.Generate()
	rec.CreatedAt = s.clock.Now().UnixMilli()

	result, err := q.ExecContext(ctx, `
		INSERT INTO claim_attempts
		(id, agent_id, git_sha, project, task, task_key, attempted_at, was_granted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.AgentID,
		rec.GitSha,
		rec.Project,
		rec.Task,
		rec.TaskKey,
		rec.AttemptedAt,
		rec.WasGranted,
		rec.CreatedAt,
	)
	if err != nil {
		return claim.AttemptRecord{}, fmt.Errorf("append attempt: %w", err)
	}

	rec.Seq, err = result.LastInsertId()
	if err != nil {
		return claim.AttemptRecord{}, fmt.Errorf("append attempt: last insert id: %w", err)
	}
	return rec, nil
}

// lookupGrant reads the earliest granted row for taskKey via the
// (task_key, was_granted) index.
func lookupGrant(ctx context.Context, q execer, taskKey string) (claim.AttemptRecord, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM claim_attempts INDEXED BY idx_claim_attempts_task_key_granted
		WHERE task_key = ? AND was_granted = 1
		ORDER BY attempted_at ASC, seq ASC
		LIMIT 1
	`, taskKey)

	rec, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return claim.AttemptRecord{}, false, nil
	}
	if err != nil {
		return claim.AttemptRecord{}, false, fmt.Errorf("lookup grant: %w", err)
	}
	return rec, true, nil
}
