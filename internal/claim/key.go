package claim

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// KeyDelimiter separates the components of a TaskKey.
const KeyDelimiter = ":"

// keyEscaper escapes the delimiter and the escape character inside a component.
// Components without either character pass through unchanged, so keys for
// ordinary inputs read as "project:task:sha".
var keyEscaper = strings.NewReplacer(`\`, `\\`, KeyDelimiter, `\`+KeyDelimiter)

// TaskKey identifies one unit of work at one commit.
type TaskKey string

// NewTaskKey derives the TaskKey for a (project, task, gitSha) triple.
//
// Components are NFC-normalized so that canonically equivalent Unicode
// spellings map to the same key, then escaped so that no two distinct triples
// produce the same key.
func NewTaskKey(project, task, gitSha string) TaskKey {
	return TaskKey(escapeComponent(project) + KeyDelimiter +
		escapeComponent(task) + KeyDelimiter +
		escapeComponent(gitSha))
}

// String returns the key as stored in the attempt log.
func (k TaskKey) String() string {
	return string(k)
}

func escapeComponent(s string) string {
	return keyEscaper.Replace(normalizeComponent(s))
}

// normalizeComponent returns the NFC form of a key component. Records store
// components in this form, so every attempt under one TaskKey carries the same
// project, task and gitSha bytes.
func normalizeComponent(s string) string {
	return norm.NFC.String(s)
}
