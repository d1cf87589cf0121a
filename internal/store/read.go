package store

import (
	"context"
	"fmt"

	"github.com/roach88/nxcoord/internal/claim"
)

// attemptColumns is the column list matching scanAttempt.
const attemptColumns = `seq, id, agent_id, git_sha, project, task, task_key, attempted_at, was_granted, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAttempt scans one row selected with attemptColumns.
// Returns the driver error unwrapped so callers can test for sql.ErrNoRows.
func scanAttempt(row rowScanner) (claim.AttemptRecord, error) {
	var rec claim.AttemptRecord
	if err := row.Scan(
		&rec.Seq, &rec.ID, &rec.AgentID, &rec.GitSha, &rec.Project, &rec.Task,
		&rec.TaskKey, &rec.AttemptedAt, &rec.WasGranted, &rec.CreatedAt,
	); err != nil {
		return claim.AttemptRecord{}, err
	}
	return rec, nil
}

// ByCommit returns all attempts for gitSha ordered by attempted_at DESC, seq DESC.
//
// Returns an empty slice (not nil) if the commit has no attempts.
func (s *Store) ByCommit(ctx context.Context, gitSha string) ([]claim.AttemptRecord, error) {
	return s.queryAttempts(ctx, "attempts by commit", `
		SELECT `+attemptColumns+`
		FROM claim_attempts
		WHERE git_sha = ?
		ORDER BY attempted_at DESC, seq DESC
	`, gitSha)
}

// PageBefore returns up to n attempts older than after, newest first, read
// from the (attempted_at, seq) index.
func (s *Store) PageBefore(ctx context.Context, after *claim.Cursor, n int) ([]claim.AttemptRecord, error) {
	if after == nil {
		return s.queryAttempts(ctx, "page attempts", `
			SELECT `+attemptColumns+`
			FROM claim_attempts
			ORDER BY attempted_at DESC, seq DESC
			LIMIT ?
		`, n)
	}
	return s.queryAttempts(ctx, "page attempts", `
		SELECT `+attemptColumns+`
		FROM claim_attempts
		WHERE attempted_at < ? OR (attempted_at = ? AND seq < ?)
		ORDER BY attempted_at DESC, seq DESC
		LIMIT ?
	`, after.AttemptedAt, after.AttemptedAt, after.Seq, n)
}

// Scan streams every attempt to fn in seq order without buffering the table.
func (s *Store) Scan(ctx context.Context, fn func(claim.AttemptRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attemptColumns+`
		FROM claim_attempts
		ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("scan attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return fmt.Errorf("scan attempts: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attempts: %w", err)
	}
	return nil
}

func (s *Store) queryAttempts(ctx context.Context, op, query string, args ...any) ([]claim.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	attempts := []claim.AttemptRecord{}
	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		attempts = append(attempts, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	return attempts, nil
}
