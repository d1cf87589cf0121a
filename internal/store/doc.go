// Package store provides SQLite-backed durable storage for the claim attempt log.
//
// The store is a single append-only table, claim_attempts. Rows are never
// updated or deleted.
//
// # Indexes
//
//   - (task_key, was_granted): grant lookup without scanning unrelated keys
//   - git_sha: attempts for one commit
//   - (attempted_at, seq): time-ordered pagination
//   - project, task, was_granted: dashboard filters
//
// # Serialization
//
// Claims run inside a BEGIN IMMEDIATE transaction, which takes the database
// write lock before the grant lookup. Two claims for the same key can never
// both observe "no grant". A failed claim rolls back, leaving no row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
