package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_EncodeDecode(t *testing.T) {
	c := Cursor{AttemptedAt: 1700000000123, Seq: 42}

	got, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c, *got)
}

func TestDecodeCursor_Empty(t *testing.T) {
	got, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, token := range []string{"!!!", "bm9kb3Q", "YS5i"} { // bad base64, "nodot", "a.b"
		_, err := DecodeCursor(token)
		assert.True(t, IsValidation(err), "token %q", token)
	}
}

func TestCursor_Before(t *testing.T) {
	c := Cursor{AttemptedAt: 100, Seq: 5}

	assert.True(t, c.Before(AttemptRecord{AttemptedAt: 99, Seq: 9}))
	assert.True(t, c.Before(AttemptRecord{AttemptedAt: 100, Seq: 4}))
	assert.False(t, c.Before(AttemptRecord{AttemptedAt: 100, Seq: 5}))
	assert.False(t, c.Before(AttemptRecord{AttemptedAt: 101, Seq: 1}))
}
