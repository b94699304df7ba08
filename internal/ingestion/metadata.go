package ingestion

import (
	"path/filepath"
	"strings"
)

// InferredMetadata holds the file type and topic inferred from a document
// path. Explicit metadata on a document takes precedence — this is the
// best-effort fallback derived from how the ingest tree is laid out.
type InferredMetadata struct {
	// FileType is the canonical content kind (text, markdown, pdf).
	FileType string
	// Topic is the top-level directory the file lives under, or "general"
	// for files at the ingest root.
	Topic string
}

// extensionAliases maps each loadable file extension to its canonical
// content kind.
var extensionAliases = map[string]string{
	".txt":      "text",
	".text":     "text",
	".md":       "markdown",
	".markdown": "markdown",
	".pdf":      "pdf",
}

// InferMetadata inspects a document path and returns best-effort metadata.
// Unknown extensions fall back to "text".
//
// Topic examples:
//
//	cricket/imran_khan.txt  → cricket
//	history/1971/tour.md    → history
//	notes.txt               → general
func InferMetadata(path string) InferredMetadata {
	m := InferredMetadata{
		FileType: "text",
		Topic:    "general",
	}

	if kind, ok := extensionAliases[strings.ToLower(filepath.Ext(path))]; ok {
		m.FileType = kind
	}

	segments := trimSegments(filepath.ToSlash(path))
	if len(segments) > 1 {
		m.Topic = strings.ToLower(segments[0])
	}
	return m
}

// trimSegments splits a slash path into non-empty segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
