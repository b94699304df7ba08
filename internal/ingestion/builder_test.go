package ingestion

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// mapEmbedder returns a fixed vector per exact chunk text. Unknown texts
// are an error so tests notice unexpected chunking.
type mapEmbedder struct {
	vectors map[string][]float32
	batches []int
}

func (e *mapEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *mapEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, len(texts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := e.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", text)
		}
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}

// lenEmbedder derives a vector from the text itself, so any chunking is
// embeddable without registering texts up front.
type lenEmbedder struct{}

func (lenEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (lenEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding backend unavailable")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding backend unavailable")
}

const (
	textTour   = "Imran Khan captained Pakistan to the 1992 World Cup."
	textGround = "Gaddafi Stadium sits in Lahore."
)

func fixtureDocs() []rag.Document {
	return []rag.Document{
		{
			ID:       "cricket/imran_khan.txt",
			RawText:  textTour,
			Metadata: map[string]string{"topic": "cricket"},
		},
		{
			ID:       "cricket/gaddafi.txt",
			RawText:  textGround,
			Metadata: map[string]string{"topic": "cricket"},
		},
	}
}

func fixtureEmbedder() *mapEmbedder {
	return &mapEmbedder{vectors: map[string][]float32{
		textTour:   {0, 0},
		textGround: {5, 0},
	}}
}

func Test_NewBuilder_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewBuilder(nil, nil); err == nil {
		t.Error("NewBuilder(nil, nil): want error, got nil")
	}
	if _, err := NewBuilder(fixtureEmbedder(), &Config{IndexKind: "hnsw"}); err == nil {
		t.Error("NewBuilder with unknown index kind: want error, got nil")
	}
}

func Test_Builder_Build(t *testing.T) {
	t.Parallel()

	docs := fixtureDocs()
	b, err := NewBuilder(fixtureEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	store, err := b.Build(context.Background(), docs, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Count = %d, want 2", count)
	}

	hits, err := store.Search(context.Background(), []float32{4.9, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}

	chunk := hits[0].Chunk
	if chunk.Text != textGround {
		t.Errorf("Text = %q, want %q", chunk.Text, textGround)
	}
	if chunk.DocumentID != "cricket/gaddafi.txt" {
		t.Errorf("DocumentID = %q, want %q", chunk.DocumentID, "cricket/gaddafi.txt")
	}
	if chunk.Offset != 0 {
		t.Errorf("Offset = %d, want 0", chunk.Offset)
	}
	if len(chunk.ID) != 32 {
		t.Errorf("ID = %q, want 32 hex characters", chunk.ID)
	}
	if got := chunk.Metadata["topic"]; got != "cricket" {
		t.Errorf("topic = %q, want %q", got, "cricket")
	}
	if got := chunk.Metadata["chunk_index"]; got != "0" {
		t.Errorf("chunk_index = %q, want %q", got, "0")
	}

	// Chunks get their own metadata map; the document's is untouched.
	if _, ok := docs[1].Metadata["chunk_index"]; ok {
		t.Error("document metadata was mutated with chunk_index")
	}
}

func Test_Builder_DeterministicChunkIDs(t *testing.T) {
	t.Parallel()

	build := func() string {
		t.Helper()
		b, err := NewBuilder(fixtureEmbedder(), nil)
		if err != nil {
			t.Fatalf("NewBuilder: %v", err)
		}
		store, err := b.Build(context.Background(), fixtureDocs(), nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		hits, err := store.Search(context.Background(), []float32{0, 0}, 1)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		return hits[0].Chunk.ID
	}

	first, second := build(), build()
	if first != second {
		t.Errorf("chunk ID not deterministic: %q vs %q", first, second)
	}
}

func Test_Builder_MultiChunkOffsets(t *testing.T) {
	t.Parallel()

	raw := strings.Repeat("The monsoon season brings heavy rain to the Indus plain. ", 20)
	doc := rag.Document{ID: "weather/monsoon.txt", RawText: raw}

	b, err := NewBuilder(lenEmbedder{}, &Config{ChunkSize: 300, ChunkOverlap: 30})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	store, err := b.Build(context.Background(), []rag.Document{doc}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count < 2 {
		t.Fatalf("Count = %d, want at least 2 chunks", count)
	}

	hits, err := store.Search(context.Background(), []float32{300, 1}, count)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != count {
		t.Fatalf("got %d hits, want %d", len(hits), count)
	}

	// Every chunk's offset must locate its text inside the normalized
	// document.
	norm := Normalize(raw)
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		c := hit.Chunk
		if seen[c.ID] {
			t.Errorf("duplicate chunk ID %q", c.ID)
		}
		seen[c.ID] = true

		if c.Offset < 0 || c.Offset+len(c.Text) > len(norm) {
			t.Fatalf("chunk %s: offset %d with %d bytes exceeds document of %d bytes",
				c.ID, c.Offset, len(c.Text), len(norm))
		}
		if got := norm[c.Offset : c.Offset+len(c.Text)]; got != c.Text {
			t.Errorf("chunk %s: text at offset %d = %q, want %q", c.ID, c.Offset, got, c.Text)
		}
	}
}

func Test_Builder_IVFKind(t *testing.T) {
	t.Parallel()

	texts := []string{
		"Lahore hosts the final.",
		"Karachi hosts the opener.",
		"Multan grows mangoes.",
		"Quetta sits at altitude.",
	}
	vectors := map[string][]float32{
		texts[0]: {0, 0},
		texts[1]: {0.5, 0},
		texts[2]: {10, 0},
		texts[3]: {10.5, 0},
	}
	docs := make([]rag.Document, len(texts))
	for i, text := range texts {
		docs[i] = rag.Document{ID: fmt.Sprintf("doc-%d.txt", i), RawText: text}
	}

	b, err := NewBuilder(&mapEmbedder{vectors: vectors}, &Config{
		IndexKind: KindIVF,
		IVFNList:  2,
		IVFNProbe: 2,
	})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	store, err := b.Build(context.Background(), docs, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != len(texts) {
		t.Fatalf("Count = %d, want %d", count, len(texts))
	}

	hits, err := store.Search(context.Background(), []float32{10.1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.Text != texts[2] {
		t.Fatalf("Search returned %+v, want chunk %q", hits, texts[2])
	}
}

func Test_Builder_BatchSizeDoesNotChangeStore(t *testing.T) {
	t.Parallel()

	for _, batch := range []int{1, 8} {
		emb := fixtureEmbedder()
		b, err := NewBuilder(emb, &Config{EmbedBatchSize: batch})
		if err != nil {
			t.Fatalf("NewBuilder: %v", err)
		}
		store, err := b.Build(context.Background(), fixtureDocs(), nil)
		if err != nil {
			t.Fatalf("Build with batch %d: %v", batch, err)
		}

		hits, err := store.Search(context.Background(), []float32{0.1, 0}, 1)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if hits[0].Chunk.Text != textTour {
			t.Errorf("batch %d: top hit = %q, want %q", batch, hits[0].Chunk.Text, textTour)
		}

		wantCalls := 2
		if batch >= 2 {
			wantCalls = 1
		}
		if len(emb.batches) != wantCalls {
			t.Errorf("batch %d: embedder called %d times, want %d", batch, len(emb.batches), wantCalls)
		}
	}
}

func Test_Builder_EmbedFailureHalts(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(failingEmbedder{}, nil)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	store, err := b.Build(context.Background(), fixtureDocs(), nil)
	if err == nil {
		t.Fatal("Build: want error from failing embedder, got nil")
	}
	if !strings.Contains(err.Error(), "embedding failed") {
		t.Errorf("error = %q, want mention of embedding failure", err)
	}
	if store != nil {
		t.Error("Build returned a store alongside an error")
	}
}

func Test_Builder_NoChunks(t *testing.T) {
	t.Parallel()

	docs := []rag.Document{
		{ID: "empty.txt", RawText: "   \n\t  "},
	}

	b, err := NewBuilder(fixtureEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if _, err := b.Build(context.Background(), docs, nil); err == nil {
		t.Fatal("Build: want error for zero chunks, got nil")
	}
}

func Test_Builder_Progress(t *testing.T) {
	t.Parallel()

	var msgs []string
	b, err := NewBuilder(fixtureEmbedder(), nil)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if _, err := b.Build(context.Background(), fixtureDocs(), func(msg string) {
		msgs = append(msgs, msg)
	}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(msgs) == 0 {
		t.Fatal("no progress messages reported")
	}
	last := msgs[len(msgs)-1]
	if !strings.Contains(last, "indexed 2 chunks") {
		t.Errorf("final progress = %q, want indexed chunk count", last)
	}
}
