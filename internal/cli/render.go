package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/nxcoord/internal/claim"
)

// formatMillis renders a ms-since-epoch timestamp in UTC.
func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// ClaimResult is the output of the claim command.
type ClaimResult struct {
	TaskKey   string `json:"taskKey" yaml:"task_key"`
	Acquired  bool   `json:"acquired" yaml:"acquired"`
	ClaimedBy string `json:"claimedBy,omitempty" yaml:"claimed_by,omitempty"`
	ClaimedAt int64  `json:"claimedAt,omitempty" yaml:"claimed_at,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

func newClaimResult(key claim.TaskKey, v claim.Verdict) ClaimResult {
	return ClaimResult{
		TaskKey:   key.String(),
		Acquired:  v.Acquired,
		ClaimedBy: v.ClaimedBy,
		ClaimedAt: v.ClaimedAt,
		Message:   v.Message(),
	}
}

// RenderText implements TextRenderer.
func (r ClaimResult) RenderText(w io.Writer) error {
	if r.Acquired {
		_, err := fmt.Fprintf(w, "granted %s\n", r.TaskKey)
		return err
	}
	_, err := fmt.Fprintf(w, "denied %s: %s at %s\n", r.TaskKey, r.Message, formatMillis(r.ClaimedAt))
	return err
}

// AttemptList is the output of the attempts command.
type AttemptList struct {
	GitSha   string                `json:"gitSha" yaml:"git_sha"`
	Attempts []claim.AttemptRecord `json:"attempts" yaml:"attempts"`
}

// RenderText implements TextRenderer.
func (l AttemptList) RenderText(w io.Writer) error {
	if len(l.Attempts) == 0 {
		_, err := fmt.Fprintf(w, "No attempts found for commit: %s\n", l.GitSha)
		return err
	}
	return renderAttempts(w, l.Attempts)
}

// RecentResult is the output of the recent command.
type RecentResult struct {
	claim.Page `yaml:",inline"`
}

// RenderText implements TextRenderer.
func (r RecentResult) RenderText(w io.Writer) error {
	if len(r.Attempts) == 0 {
		if _, err := fmt.Fprintln(w, "No matching attempts on this page"); err != nil {
			return err
		}
	} else if err := renderAttempts(w, r.Attempts); err != nil {
		return err
	}
	if r.NextCursor != "" {
		_, err := fmt.Fprintf(w, "\nNext page: --cursor %s\n", r.NextCursor)
		return err
	}
	return nil
}

func renderAttempts(w io.Writer, recs []claim.AttemptRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTEMPTED AT\tAGENT\tPROJECT\tTASK\tGIT SHA\tGRANTED")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
			formatMillis(rec.AttemptedAt), rec.AgentID, rec.Project, rec.Task, rec.GitSha, rec.WasGranted)
	}
	return tw.Flush()
}

// StatsView is the output of the stats command.
type StatsView struct {
	claim.Stats `yaml:",inline"`
}

// RenderText implements TextRenderer.
func (s StatsView) RenderText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%-22s %d\n", "Total attempts:", s.TotalAttempts)
	fmt.Fprintf(&b, "%-22s %d\n", "Attempts (last 24h):", s.AttemptsLast24h)
	fmt.Fprintf(&b, "%-22s %d\n", "Duplicates blocked:", s.DuplicatesBlocked)
	fmt.Fprintf(&b, "%-22s %d\n", "Duplicates (last 24h):", s.DuplicatesBlockedLast24h)

	projects := make([]tallyRow, len(s.ByProject))
	for i, p := range s.ByProject {
		projects[i] = tallyRow{p.Project, p.Total, p.Blocked}
	}
	tasks := make([]tallyRow, len(s.ByTask))
	for i, t := range s.ByTask {
		tasks[i] = tallyRow{t.Task, t.Total, t.Blocked}
	}
	writeTallies(&b, "By project:", projects)
	writeTallies(&b, "By task:", tasks)

	_, err := io.WriteString(w, b.String())
	return err
}

type tallyRow struct {
	name    string
	total   int64
	blocked int64
}

func writeTallies(b *strings.Builder, title string, rows []tallyRow) {
	fmt.Fprintf(b, "\n%s\n", title)
	if len(rows) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r.name))
	}
	for _, r := range rows {
		fmt.Fprintf(b, "  %-*s  total %d  blocked %d\n", width, r.name, r.total, r.blocked)
	}
}

// HealthResult is the output of the health command.
type HealthResult struct {
	claim.Health `yaml:",inline"`
}

// RenderText implements TextRenderer.
func (h HealthResult) RenderText(w io.Writer) error {
	if h.Status == claim.StatusHealthy {
		_, err := fmt.Fprintf(w, "%s (%s)\n", h.Status, formatMillis(h.Timestamp))
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", h.Status, h.Error)
	return err
}
