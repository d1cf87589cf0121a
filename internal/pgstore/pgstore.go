// Package pgstore provides a PostgreSQL attempt store using pgx.
//
// Claims run in a transaction that first takes a transaction-scoped advisory
// lock on the task key, so concurrent claims for the same key queue behind
// each other while claims for different keys proceed in parallel. The lock is
// released on commit or rollback.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/nxcoord/internal/claim"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS claim_attempts (
    seq          BIGSERIAL PRIMARY KEY,
    id           TEXT    NOT NULL UNIQUE,
    agent_id     TEXT    NOT NULL,
    git_sha      TEXT    NOT NULL,
    project      TEXT    NOT NULL,
    task         TEXT    NOT NULL,
    task_key     TEXT    NOT NULL,
    attempted_at BIGINT  NOT NULL,
    was_granted  BOOLEAN NOT NULL,
    created_at   BIGINT  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claim_attempts_task_key_granted ON claim_attempts(task_key, was_granted);
CREATE INDEX IF NOT EXISTS idx_claim_attempts_attempted_at     ON claim_attempts(attempted_at, seq);
CREATE INDEX IF NOT EXISTS idx_claim_attempts_git_sha          ON claim_attempts(git_sha);
CREATE INDEX IF NOT EXISTS idx_claim_attempts_project          ON claim_attempts(project);
CREATE INDEX IF NOT EXISTS idx_claim_attempts_task             ON claim_attempts(task);
CREATE INDEX IF NOT EXISTS idx_claim_attempts_task_key         ON claim_attempts(task_key);
CREATE INDEX IF NOT EXISTS idx_claim_attempts_was_granted      ON claim_attempts(was_granted);
`

const attemptColumns = `seq, id, agent_id, git_sha, project, task, task_key, attempted_at, was_granted, created_at`

// Store is a PostgreSQL claim.Store.
type Store struct {
	pool  *pgxpool.Pool
	clock claim.Clock
	ids   claim.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created_at.
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

// Open connects to databaseURL, verifies connectivity and applies the schema.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(connectCtx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", mapPgErr(err))
	}

	s := &Store{pool: pool, clock: claim.SystemClock{}, ids: claim.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", mapPgErr(err))
	}
	return nil
}

// querier is the subset of pgxpool.Pool and pgx.Tx used by lookup and append.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Serialize runs fn in a transaction holding the advisory lock for taskKey.
func (s *Store) Serialize(ctx context.Context, taskKey string, fn func(claim.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("serialize %s: begin tx: %w", taskKey, mapPgErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, taskKey); err != nil {
		return fmt.Errorf("serialize %s: advisory lock: %w", taskKey, mapPgErr(err))
	}

	if err := fn(&txView{store: s, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("serialize %s: commit: %w", taskKey, mapPgErr(err))
	}
	return nil
}

type txView struct {
	store *Store
	q     querier
}

func (v *txView) LookupGrant(ctx context.Context, taskKey string) (claim.AttemptRecord, bool, error) {
	return lookupGrant(ctx, v.q, taskKey)
}

func (v *txView) Append(ctx context.Context, rec claim.AttemptRecord) (claim.AttemptRecord, error) {
	return v.store.appendWith(ctx, v.q, rec)
}

// LookupGrant returns the granted record for taskKey outside any transaction.
func (s *Store) LookupGrant(ctx context.Context, taskKey string) (claim.AttemptRecord, bool, error) {
	return lookupGrant(ctx, s.pool, taskKey)
}

// Append inserts rec outside any claim transaction.
func (s *Store) Append(ctx context.Context, rec claim.AttemptRecord) (claim.AttemptRecord, error) {
	return s.appendWith(ctx, s.pool, rec)
}

func (s *Store) appendWith(ctx context.Context, q querier, rec claim.AttemptRecord) (claim.AttemptRecord, error) {
	rec.ID = s.ids.Generate()
	rec.CreatedAt = s.clock.Now().UnixMilli()

	err := q.QueryRow(ctx, `
		insert into claim_attempts
		(id, agent_id, git_sha, project, task, task_key, attempted_at, was_granted, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning seq
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
	).Scan(&rec.Seq)
	if err != nil {
		return claim.AttemptRecord{}, fmt.Errorf("append attempt: %w", mapPgErr(err))
	}
	return rec, nil
}

func lookupGrant(ctx context.Context, q querier, taskKey string) (claim.AttemptRecord, bool, error) {
	row := q.QueryRow(ctx, `
		select `+attemptColumns+`
		from claim_attempts
		where task_key = $1 and was_granted = true
		order by attempted_at asc, seq asc
		limit 1
	`, taskKey)

	rec, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return claim.AttemptRecord{}, false, nil
	}
	if err != nil {
		return claim.AttemptRecord{}, false, fmt.Errorf("lookup grant: %w", mapPgErr(err))
	}
	return rec, true, nil
}

// ByCommit returns all attempts for gitSha, newest first.
func (s *Store) ByCommit(ctx context.Context, gitSha string) ([]claim.AttemptRecord, error) {
	return s.queryAttempts(ctx, "attempts by commit", `
		select `+attemptColumns+`
		from claim_attempts
		where git_sha = $1
		order by attempted_at desc, seq desc
	`, gitSha)
}

// PageBefore returns up to n attempts older than after, newest first.
func (s *Store) PageBefore(ctx context.Context, after *claim.Cursor, n int) ([]claim.AttemptRecord, error) {
	if after == nil {
		return s.queryAttempts(ctx, "page attempts", `
			select `+attemptColumns+`
			from claim_attempts
			order by attempted_at desc, seq desc
			limit $1
		`, n)
	}
	return s.queryAttempts(ctx, "page attempts", `
		select `+attemptColumns+`
		from claim_attempts
		where (attempted_at, seq) < ($1, $2)
		order by attempted_at desc, seq desc
		limit $3
	`, after.AttemptedAt, after.Seq, n)
}

// Scan streams every attempt to fn in seq order. pgx reads rows off the wire
// as they are consumed, so the table is never buffered in memory.
func (s *Store) Scan(ctx context.Context, fn func(claim.AttemptRecord) error) error {
	rows, err := s.pool.Query(ctx, `select `+attemptColumns+` from claim_attempts order by seq asc`)
	if err != nil {
		return fmt.Errorf("scan attempts: %w", mapPgErr(err))
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
		return fmt.Errorf("iterate attempts: %w", mapPgErr(err))
	}
	return nil
}

func (s *Store) queryAttempts(ctx context.Context, op, sql string, args ...any) ([]claim.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapPgErr(err))
	}
	defer rows.Close()

	out := []claim.AttemptRecord{}
	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, mapPgErr(err))
	}
	return out, nil
}

func scanAttempt(row pgx.Row) (claim.AttemptRecord, error) {
	var rec claim.AttemptRecord
	err := row.Scan(
		&rec.Seq, &rec.ID, &rec.AgentID, &rec.GitSha, &rec.Project, &rec.Task,
		&rec.TaskKey, &rec.AttemptedAt, &rec.WasGranted, &rec.CreatedAt,
	)
	return rec, err
}

// mapPgErr adds the SQLSTATE to server errors so logs identify the failure class.
func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("db_error %s: %s: %w", pgErr.Code, pgErr.Message, err)
	}
	return err
}

var _ claim.Store = (*Store)(nil)
