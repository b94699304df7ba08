// Package chunker splits document text into bounded, overlapping spans by
// recursive boundary splitting: coarse separators (paragraph breaks) are
// tried first, finer ones (sentences, clauses, words, runes) only for
// pieces that still exceed the size limit. Separators stay attached to the
// piece they terminate, so splitting never loses characters, and every
// span records its byte offset into the input.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Default splitting parameters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// DefaultSeparators is the boundary priority order: paragraph break, line
// break, sentence terminators, clause comma, space, and finally the empty
// string meaning rune-level splitting.
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}
}

// Span is one produced chunk of text together with its byte offset into
// the input, so Text always equals input[Offset : Offset+len(Text)].
type Span struct {
	// Text is the chunk content.
	Text string

	// Offset is the byte offset of Text within the input.
	Offset int
}

// Config holds the splitting parameters.
type Config struct {
	// ChunkSize is the maximum chunk length in bytes (default 500).
	// Only a single atomic unit that cannot be split further may exceed it.
	ChunkSize int

	// ChunkOverlap is the maximum number of bytes repeated from the tail
	// of the previous chunk at the head of the next (default 50). Any
	// negative value selects no overlap at all. Clamped to ChunkSize/10
	// when it is not smaller than ChunkSize.
	ChunkOverlap int

	// Separators is the boundary priority order; nil selects
	// [DefaultSeparators].
	Separators []string
}

// Splitter performs deterministic recursive boundary splitting. Identical
// input and parameters always produce an identical span sequence.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New constructs a Splitter, filling zero-valued config fields with
// defaults.
func New(cfg Config) (*Splitter, error) {
	if cfg.ChunkSize < 0 {
		return nil, fmt.Errorf("chunker: chunk size must not be negative, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.Separators == nil {
		cfg.Separators = DefaultSeparators()
	}
	return &Splitter{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: cfg.Separators,
	}, nil
}

// Split chunks text into spans of at most ChunkSize bytes with up to
// ChunkOverlap bytes shared between consecutive spans. An atomic unit
// longer than ChunkSize that no separator can split is emitted as a single
// oversized span rather than dropped. Empty input yields no spans.
func (s *Splitter) Split(text string) []Span {
	if text == "" {
		return nil
	}
	var pieces []piece
	s.recurse(text, 0, s.separators, &pieces)
	return s.assemble(pieces)
}

// piece is an accepted fragment of the input: contiguous, in order, and at
// most size bytes unless atomic at the final separator level.
type piece struct {
	text   string
	offset int
}

// recurse splits text with the current separator and recurses into the
// remaining separators for any piece still over the size limit. base is
// the byte offset of text within the original input.
func (s *Splitter) recurse(text string, base int, separators []string, out *[]piece) {
	if len(text) <= s.size {
		*out = append(*out, piece{text: text, offset: base})
		return
	}
	if len(separators) == 0 {
		// Atomic unit: nothing left to split with. Accept it oversized.
		*out = append(*out, piece{text: text, offset: base})
		return
	}

	sep, rest := separators[0], separators[1:]
	if sep == "" {
		s.runeChop(text, base, out)
		return
	}

	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		// Separator absent, fall through to the next one.
		s.recurse(text, base, rest, out)
		return
	}

	off := 0
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) <= s.size {
			*out = append(*out, piece{text: part, offset: base + off})
		} else {
			s.recurse(part, base+off, rest, out)
		}
		off += len(part)
	}
}

// runeChop splits text into runs of at most size bytes, cutting only at
// rune boundaries.
func (s *Splitter) runeChop(text string, base int, out *[]piece) {
	start := 0
	for start < len(text) {
		end := start + s.size
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				// A single rune wider than the size limit; take it whole.
				_, w := utf8.DecodeRuneInString(text[start:])
				end = start + w
			}
		}
		*out = append(*out, piece{text: text[start:end], offset: base + start})
		start = end
	}
}

// assemble greedily merges adjacent pieces into spans of at most size
// bytes, carrying up to overlap trailing bytes (whole pieces) of each span
// into the head of the next. The overlap counts against the size budget,
// so only a span holding one oversized atomic piece can exceed the limit.
func (s *Splitter) assemble(pieces []piece) []Span {
	var spans []Span
	var window []piece
	carryLen, newLen := 0, 0

	flush := func() {
		if newLen == 0 {
			return
		}
		var b strings.Builder
		for _, p := range window {
			b.WriteString(p.text)
		}
		spans = append(spans, Span{Text: b.String(), Offset: window[0].offset})

		cut := len(window)
		total := 0
		for cut > 0 && total+len(window[cut-1].text) <= s.overlap {
			total += len(window[cut-1].text)
			cut--
		}
		window = append([]piece(nil), window[cut:]...)
		carryLen, newLen = total, 0
	}

	for _, p := range pieces {
		if newLen > 0 && carryLen+newLen+len(p.text) > s.size {
			flush()
		}
		for carryLen > 0 && carryLen+len(p.text) > s.size {
			carryLen -= len(window[0].text)
			window = window[1:]
		}
		window = append(window, p)
		newLen += len(p.text)
		if carryLen+newLen > s.size {
			flush()
		}
	}
	flush()
	return spans
}
