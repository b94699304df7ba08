package chunker

import (
	"reflect"
	"strings"
	"testing"
)

// sampleBiography is a multi-paragraph corpus long enough to force several
// chunks at the default parameters.
const sampleBiography = `Imran Khan Niazi is a former cricketer and politician who served as the prime minister from 2018 to 2022. He was born in Lahore in 1952 and studied at Keble College, Oxford, where he read philosophy, politics and economics before returning home. He began his international cricket career in a 1971 Test series against England. Over the following two decades he became one of the finest all-rounders the game has seen, scoring thousands of runs and taking hundreds of wickets in both Test and one-day cricket.

As captain he led his side to victory in the 1992 World Cup, an achievement still celebrated across the country. After retiring from cricket he founded a cancer hospital in memory of his mother, funded largely through public donations. He entered politics in 1996 when he founded his own party, and after two decades in opposition his party won the general election. His government focused on anti-corruption measures, social welfare programs, and an independent foreign policy.`

func reconstruct(t *testing.T, spans []Span) string {
	t.Helper()
	if len(spans) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(spans[0].Text)
	prevEnd := spans[0].Offset + len(spans[0].Text)
	for _, sp := range spans[1:] {
		if sp.Offset > prevEnd {
			t.Fatalf("gap between spans: previous ends at %d, next starts at %d", prevEnd, sp.Offset)
		}
		b.WriteString(sp.Text[prevEnd-sp.Offset:])
		prevEnd = sp.Offset + len(sp.Text)
	}
	return b.String()
}

func Test_Splitter_EmptyInputYieldsNoSpans(t *testing.T) {
	t.Parallel()

	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Split(""); got != nil {
		t.Errorf("want nil for empty input, got %v", got)
	}
}

func Test_Splitter_ShortInputIsOneSpan(t *testing.T) {
	t.Parallel()

	s, _ := New(Config{ChunkSize: 100, ChunkOverlap: 10})
	got := s.Split("a short sentence.")
	if len(got) != 1 {
		t.Fatalf("want 1 span, got %d", len(got))
	}
	if got[0].Text != "a short sentence." || got[0].Offset != 0 {
		t.Errorf("unexpected span %+v", got[0])
	}
}

func Test_Splitter_SpanLengthsBounded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "tiny", size: 40, overlap: 8},
		{name: "small", size: 100, overlap: 20},
		{name: "default", size: 500, overlap: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := New(Config{ChunkSize: tt.size, ChunkOverlap: tt.overlap})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for i, sp := range s.Split(sampleBiography) {
				if len(sp.Text) > tt.size {
					t.Errorf("span %d exceeds size %d: %d bytes", i, tt.size, len(sp.Text))
				}
			}
		})
	}
}

func Test_Splitter_OffsetsSliceTheInput(t *testing.T) {
	t.Parallel()

	s, _ := New(Config{ChunkSize: 120, ChunkOverlap: 30})
	for i, sp := range s.Split(sampleBiography) {
		if got := sampleBiography[sp.Offset : sp.Offset+len(sp.Text)]; got != sp.Text {
			t.Errorf("span %d text does not match input at offset %d", i, sp.Offset)
		}
	}
}

func Test_Splitter_ReconstructsInputWithoutLoss(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		overlap int
		input   string
	}{
		{name: "biography default", size: 500, overlap: 50, input: sampleBiography},
		{name: "biography tiny", size: 60, overlap: 12, input: sampleBiography},
		{name: "single paragraph", size: 80, overlap: 16, input: "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen."},
		{name: "newline heavy", size: 30, overlap: 6, input: "alpha\nbeta\n\ngamma\ndelta\n\nepsilon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := New(Config{ChunkSize: tt.size, ChunkOverlap: tt.overlap})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			spans := s.Split(tt.input)
			if len(spans) == 0 {
				t.Fatal("want at least one span")
			}
			if spans[0].Offset != 0 {
				t.Errorf("first span must start at offset 0, got %d", spans[0].Offset)
			}
			if got := reconstruct(t, spans); got != tt.input {
				t.Errorf("reconstruction differs from input:\nwant %q\ngot  %q", tt.input, got)
			}
		})
	}
}

func Test_Splitter_OverlapNeverExceedsConfigured(t *testing.T) {
	t.Parallel()

	s, _ := New(Config{ChunkSize: 100, ChunkOverlap: 25})
	spans := s.Split(sampleBiography)
	for i := 1; i < len(spans); i++ {
		prevEnd := spans[i-1].Offset + len(spans[i-1].Text)
		overlap := prevEnd - spans[i].Offset
		if overlap < 0 {
			t.Fatalf("span %d starts after the previous span ends", i)
		}
		if overlap > 25 {
			t.Errorf("span %d overlap %d exceeds configured 25", i, overlap)
		}
	}
}

func Test_Splitter_NegativeOverlapMeansNone(t *testing.T) {
	t.Parallel()

	s, err := New(Config{ChunkSize: 100, ChunkOverlap: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	spans := s.Split(sampleBiography)
	if len(spans) < 2 {
		t.Fatalf("want several spans, got %d", len(spans))
	}
	var b strings.Builder
	for i, sp := range spans {
		if i > 0 {
			prevEnd := spans[i-1].Offset + len(spans[i-1].Text)
			if sp.Offset != prevEnd {
				t.Errorf("span %d starts at %d, want %d (no overlap, no gap)", i, sp.Offset, prevEnd)
			}
		}
		b.WriteString(sp.Text)
	}
	if b.String() != sampleBiography {
		t.Error("plain concatenation of non-overlapping spans differs from input")
	}
}

func Test_Splitter_Deterministic(t *testing.T) {
	t.Parallel()

	s, _ := New(Config{ChunkSize: 90, ChunkOverlap: 18})
	first := s.Split(sampleBiography)
	second := s.Split(sampleBiography)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input and parameters produced different spans")
	}
}

func Test_Splitter_OversizedAtomicUnitIsEmitted(t *testing.T) {
	t.Parallel()

	longWord := strings.Repeat("x", 300)
	input := "start " + longWord + " end"

	// Without the rune-level fallback the long word cannot be split.
	s, err := New(Config{ChunkSize: 100, ChunkOverlap: 10, Separators: []string{" "}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	spans := s.Split(input)
	found := false
	for _, sp := range spans {
		if strings.Contains(sp.Text, longWord) {
			found = true
		}
	}
	if !found {
		t.Fatal("oversized atomic unit was dropped")
	}
	if got := reconstruct(t, spans); got != input {
		t.Errorf("reconstruction differs from input:\nwant %q\ngot  %q", input, got)
	}
}

func Test_Splitter_RuneFallbackKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("héllo", 40) // no separators at all, multibyte runes
	s, _ := New(Config{ChunkSize: 32, ChunkOverlap: 4})
	for i, sp := range s.Split(input) {
		if !strings.HasPrefix(input[sp.Offset:], sp.Text) {
			t.Fatalf("span %d is not aligned with the input", i)
		}
		if len(sp.Text) > 32 {
			t.Errorf("span %d exceeds size: %d bytes", i, len(sp.Text))
		}
		for _, r := range sp.Text {
			if r == '�' {
				t.Fatalf("span %d split a rune in half", i)
			}
		}
	}
}

func Test_Splitter_OverlapClampedBelowSize(t *testing.T) {
	t.Parallel()

	s, err := New(Config{ChunkSize: 100, ChunkOverlap: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.overlap != 10 {
		t.Errorf("want overlap clamped to 10, got %d", s.overlap)
	}
}

func Test_Splitter_DefaultParameters(t *testing.T) {
	t.Parallel()

	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.size != DefaultChunkSize || s.overlap != DefaultChunkOverlap {
		t.Errorf("want defaults %d/%d, got %d/%d", DefaultChunkSize, DefaultChunkOverlap, s.size, s.overlap)
	}
}

func Test_Splitter_KeySentenceSurvivesDefaultSplit(t *testing.T) {
	t.Parallel()

	const sentence = "He began his international cricket career in a 1971 Test series against England"

	s, _ := New(Config{ChunkSize: 500, ChunkOverlap: 50})
	spans := s.Split(sampleBiography)

	for _, sp := range spans {
		if strings.Contains(sp.Text, sentence) {
			return
		}
	}
	t.Fatalf("no span contains the key sentence; got %d spans", len(spans))
}
