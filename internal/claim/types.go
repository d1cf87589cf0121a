package claim

import (
	"fmt"
	"strings"
)

// AttemptRecord is one immutable entry in the attempt log.
//
// ID, Seq and CreatedAt are assigned by the store on append. Seq is a
// store-local monotonic counter used to break ties between records with the
// same AttemptedAt.
type AttemptRecord struct {
	ID          string `json:"id" yaml:"id"`
	Seq         int64  `json:"seq" yaml:"seq"`
	AgentID     string `json:"agentId" yaml:"agent_id"`
	GitSha      string `json:"gitSha" yaml:"git_sha"`
	Project     string `json:"project" yaml:"project"`
	Task        string `json:"task" yaml:"task"`
	TaskKey     string `json:"taskKey" yaml:"task_key"`
	AttemptedAt int64  `json:"attemptedAt" yaml:"attempted_at"` // ms since epoch
	WasGranted  bool   `json:"wasGranted" yaml:"was_granted"`
	CreatedAt   int64  `json:"createdAt" yaml:"created_at"` // ms since epoch
}

// ClaimRequest carries the identity of a claiming agent and the task it wants.
type ClaimRequest struct {
	AgentID string `json:"agentId"`
	Project string `json:"project"`
	Task    string `json:"task"`
	GitSha  string `json:"gitSha"`
}

// Validate reports every empty field. Any non-empty string is accepted,
// whitespace included.
func (r ClaimRequest) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"project", r.Project},
		{"task", r.Task},
		{"gitSha", r.GitSha},
		{"agentId", r.AgentID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return NewValidationError(
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			missing...,
		)
	}
	return nil
}

// Normalize returns r with Project, Task and GitSha in NFC form, the form
// NewTaskKey keys on.
func (r ClaimRequest) Normalize() ClaimRequest {
	r.Project = normalizeComponent(r.Project)
	r.Task = normalizeComponent(r.Task)
	r.GitSha = normalizeComponent(r.GitSha)
	return r
}

// Key returns the TaskKey the request claims.
func (r ClaimRequest) Key() TaskKey {
	return NewTaskKey(r.Project, r.Task, r.GitSha)
}

// Verdict is the admission decision for one claim attempt.
// ClaimedBy and ClaimedAt are set only when Acquired is false.
type Verdict struct {
	Acquired  bool   `json:"acquired" yaml:"acquired"`
	ClaimedBy string `json:"claimedBy,omitempty" yaml:"claimed_by,omitempty"`
	ClaimedAt int64  `json:"claimedAt,omitempty" yaml:"claimed_at,omitempty"`
}

// Message is the human-readable form of a denial. Empty for grants.
func (v Verdict) Message() string {
	if v.Acquired {
		return ""
	}
	return "Task already claimed by " + v.ClaimedBy
}
