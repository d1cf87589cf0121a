package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/nxcoord/internal/claim"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAttempt creates an attempt record with minimal required fields.
func createTestAttempt(agent, project, task, sha string, attemptedAt int64, granted bool) claim.AttemptRecord {
	return claim.AttemptRecord{
		AgentID:     agent,
		GitSha:      sha,
		Project:     project,
		Task:        task,
		TaskKey:     claim.NewTaskKey(project, task, sha).String(),
		AttemptedAt: attemptedAt,
		WasGranted:  granted,
	}
}
