package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTaskKey_PlainComponents(t *testing.T) {
	assert.Equal(t, TaskKey("proj1:build:sha1"), NewTaskKey("proj1", "build", "sha1"))
}

func TestNewTaskKey_DelimiterDoesNotCollide(t *testing.T) {
	a := NewTaskKey("a:b", "c", "d")
	b := NewTaskKey("a", "b:c", "d")
	c := NewTaskKey("a", "b", "c:d")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, b, c)
	assert.NotEqual(t, a, c)
	assert.Equal(t, `a\:b:c:d`, a.String())
}

func TestNewTaskKey_EscapeCharacterDoesNotCollide(t *testing.T) {
	// Without escaping the backslash, `a\` + ":" would read like an escaped delimiter.
	a := NewTaskKey(`a\`, "b", "c")
	b := NewTaskKey(`a\:b`, "", "c")

	assert.NotEqual(t, a, b)
	assert.Equal(t, `a\\:b:c`, a.String())
}

func TestNewTaskKey_NormalizesUnicode(t *testing.T) {
	composed := "caf\u00e9"    // é as one code point
	decomposed := "cafe\u0301" // e + combining acute

	assert.Equal(t, NewTaskKey(composed, "build", "sha"), NewTaskKey(decomposed, "build", "sha"))
}

func TestNewTaskKey_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, NewTaskKey("p", "t", "s"), NewTaskKey("p", "t", "s"))
	}
}
