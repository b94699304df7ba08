package ingestion

import (
	"regexp"
	"strings"
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	specialChars   = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?-]`)
	spacedPunct    = regexp.MustCompile(`\s+([.,!?])`)
)

// Normalize cleans raw document text before chunking: whitespace runs
// collapse to single spaces, characters outside letters, digits,
// underscore, whitespace, and sentence punctuation become spaces, and
// whitespace is removed ahead of `.,!?`. Normalization happens once at
// ingest time so chunk offsets refer to the normalized text.
func Normalize(text string) string {
	text = strings.TrimSpace(whitespaceRuns.ReplaceAllString(text, " "))
	text = specialChars.ReplaceAllString(text, " ")
	text = spacedPunct.ReplaceAllString(text, "$1")
	return text
}
