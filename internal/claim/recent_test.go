package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultPageLimit, ClampLimit(0))
	assert.Equal(t, DefaultPageLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxPageLimit, ClampLimit(MaxPageLimit))
	assert.Equal(t, MaxPageLimit, ClampLimit(1000))
}

func TestRecentFilter_Match(t *testing.T) {
	rec := AttemptRecord{Project: "proj1", Task: "build", GitSha: "abcdef", WasGranted: false}
	yes, no := true, false

	tests := []struct {
		name   string
		filter RecentFilter
		want   bool
	}{
		{"empty", RecentFilter{}, true},
		{"project", RecentFilter{Project: "proj1"}, true},
		{"other project", RecentFilter{Project: "proj2"}, false},
		{"task", RecentFilter{Task: "build"}, true},
		{"other task", RecentFilter{Task: "test"}, false},
		{"denied", RecentFilter{WasGranted: &no}, true},
		{"granted", RecentFilter{WasGranted: &yes}, false},
		{"sha prefix", RecentFilter{GitShaPrefix: "abc"}, true},
		{"sha mismatch", RecentFilter{GitShaPrefix: "abd"}, false},
		{"all", RecentFilter{Project: "proj1", Task: "build", WasGranted: &no, GitShaPrefix: "abcdef"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(rec))
		})
	}
}

func TestFilterPage_NeverNil(t *testing.T) {
	out := filterPage(nil, RecentFilter{Project: "x"})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
