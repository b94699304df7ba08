package embedder

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxInputChars bounds the text length accepted per embed call.
// Most embedding models truncate silently past their context window;
// rejecting oversized input keeps truncation bugs visible.
const DefaultMaxInputChars = 8000

var (
	// ErrEmptyInput is returned when a text to embed is empty or whitespace.
	ErrEmptyInput = errors.New("embedder: input text is empty")
	// ErrInputTooLong is returned when a text exceeds the configured
	// character limit for the embedding model.
	ErrInputTooLong = errors.New("embedder: input text exceeds the model input limit")
)

// validateInputs rejects empty and oversized texts before any network call.
func validateInputs(texts []string, maxChars int) error {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("embedder: input %d: %w", i, ErrEmptyInput)
		}
		if n := utf8.RuneCountInString(text); n > maxChars {
			return fmt.Errorf("embedder: input %d is %d chars, limit %d: %w", i, n, maxChars, ErrInputTooLong)
		}
	}
	return nil
}

// checkUniformDimension verifies every returned vector has the same length.
// A ragged response means the backend misbehaved; downstream index code
// assumes a single dimension.
func checkUniformDimension(embeddings [][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return errors.New("embedder: backend returned an empty vector")
	}
	for i, vec := range embeddings {
		if len(vec) != dim {
			return fmt.Errorf("embedder: vector %d has dimension %d, expected %d", i, len(vec), dim)
		}
	}
	return nil
}
