package claim

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cursor marks a position in the time-ordered attempt log: the (AttemptedAt,
// Seq) of the last record of a page. The next page starts strictly after it.
type Cursor struct {
	AttemptedAt int64
	Seq         int64
}

// CursorAfter returns the cursor positioned at rec.
func CursorAfter(rec AttemptRecord) Cursor {
	return Cursor{AttemptedAt: rec.AttemptedAt, Seq: rec.Seq}
}

// Encode returns the opaque token form of c.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.AttemptedAt, 10) + "." + strconv.FormatInt(c.Seq, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Before reports whether rec sorts strictly after c in descending order,
// i.e. rec belongs on a page that follows c.
func (c Cursor) Before(rec AttemptRecord) bool {
	if rec.AttemptedAt != c.AttemptedAt {
		return rec.AttemptedAt < c.AttemptedAt
	}
	return rec.Seq < c.Seq
}

// DecodeCursor parses a token produced by Cursor.Encode.
// An empty token yields a nil cursor (start of log).
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid cursor %q", token), "cursor")
	}
	at, seq, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, NewValidationError(fmt.Sprintf("invalid cursor %q", token), "cursor")
	}
	c := &Cursor{}
	if c.AttemptedAt, err = strconv.ParseInt(at, 10, 64); err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid cursor %q", token), "cursor")
	}
	if c.Seq, err = strconv.ParseInt(seq, 10, 64); err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid cursor %q", token), "cursor")
	}
	return c, nil
}
