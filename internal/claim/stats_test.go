package claim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator_WindowBoundary(t *testing.T) {
	now := time.UnixMilli(10 * StatsWindow.Milliseconds())
	acc := NewAccumulator(now)
	edge := now.Add(-StatsWindow).UnixMilli()

	acc.Add(AttemptRecord{Project: "p", Task: "t", AttemptedAt: edge, WasGranted: true})
	acc.Add(AttemptRecord{Project: "p", Task: "t", AttemptedAt: edge - 1, WasGranted: false})
	acc.Add(AttemptRecord{Project: "p", Task: "t", AttemptedAt: edge + 1, WasGranted: false})

	s := acc.Stats()
	assert.Equal(t, int64(3), s.TotalAttempts)
	assert.Equal(t, int64(2), s.AttemptsLast24h, "window start is inclusive")
	assert.Equal(t, int64(2), s.DuplicatesBlocked)
	assert.Equal(t, int64(1), s.DuplicatesBlockedLast24h)
}

func TestAccumulator_TalliesSumToTotals(t *testing.T) {
	acc := NewAccumulator(time.Now())
	projects := []string{"b", "a", "c", "a", "b", "a"}
	tasks := []string{"lint", "build", "build", "test", "lint", "build"}
	for i := range projects {
		acc.Add(AttemptRecord{Project: projects[i], Task: tasks[i], WasGranted: i%2 == 0})
	}

	s := acc.Stats()
	var pTotal, pBlocked, tTotal, tBlocked int64
	for _, p := range s.ByProject {
		pTotal += p.Total
		pBlocked += p.Blocked
	}
	for _, tk := range s.ByTask {
		tTotal += tk.Total
		tBlocked += tk.Blocked
	}
	assert.Equal(t, s.TotalAttempts, pTotal)
	assert.Equal(t, s.TotalAttempts, tTotal)
	assert.Equal(t, s.DuplicatesBlocked, pBlocked)
	assert.Equal(t, s.DuplicatesBlocked, tBlocked)

	assert.Equal(t, "a", s.ByProject[0].Project)
	assert.Equal(t, "c", s.ByProject[2].Project)
	assert.Equal(t, "build", s.ByTask[0].Task)
}

func TestAccumulator_Empty(t *testing.T) {
	s := NewAccumulator(time.Now()).Stats()
	assert.Zero(t, s.TotalAttempts)
	assert.NotNil(t, s.ByProject)
	assert.NotNil(t, s.ByTask)
}
