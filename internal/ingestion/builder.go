package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"maps"

	"github.com/shahzaibkhangakhar/Textfinder/internal/chunker"
	"github.com/shahzaibkhangakhar/Textfinder/internal/index"
	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// Index kinds accepted by the builder.
const (
	// KindFlat selects the exact exhaustive index.
	KindFlat = "flat"
	// KindIVF selects the approximate inverted-file index, trained on the
	// full vector set before insertion.
	KindIVF = "ivf"
)

// Config holds the configuration for the store builder.
type Config struct {
	// ChunkSize is the maximum number of bytes per chunk.
	// Defaults to the splitter's default if zero.
	ChunkSize int

	// ChunkOverlap is the number of bytes repeated between consecutive
	// chunks. Defaults to the splitter's default if zero; negative means
	// no overlap.
	ChunkOverlap int

	// EmbedBatchSize is how many chunk texts are embedded per request.
	// Defaults to 32 if zero.
	EmbedBatchSize int

	// IndexKind selects the vector index ("flat" or "ivf", default "flat").
	IndexKind string

	// IVFNList is the cluster count for the ivf kind (0 = index default).
	IVFNList int

	// IVFNProbe is the clusters visited per search for the ivf kind
	// (0 = index default).
	IVFNProbe int
}

// Builder orchestrates the normalize → chunk → embed → index flow that
// produces a fully built LocalStore. Any error aborts the build; a
// partially indexed store is never returned.
type Builder struct {
	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// splitter derives chunk spans from normalized document text.
	splitter *chunker.Splitter

	// cfg holds the resolved builder configuration.
	cfg *Config
}

// NewBuilder constructs a Builder from the provided dependencies and config.
func NewBuilder(embedder rag.Embedder, cfg *Config) (*Builder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	if cfg.IndexKind == "" {
		cfg.IndexKind = KindFlat
	}
	if cfg.IndexKind != KindFlat && cfg.IndexKind != KindIVF {
		return nil, fmt.Errorf("ingestion: unknown index kind %q (valid values: flat, ivf)", cfg.IndexKind)
	}

	splitter, err := chunker.New(chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: new splitter: %w", err)
	}

	return &Builder{
		embedder: embedder,
		splitter: splitter,
		cfg:      cfg,
	}, nil
}

// Build normalizes, chunks, embeds, and indexes all provided documents into
// a fresh store. Documents are processed in order and the first error
// aborts the whole build. Progress is reported via the optional progress
// callback.
func (b *Builder) Build(ctx context.Context, docs []rag.Document, progress func(msg string)) (*rag.LocalStore, error) {
	if progress == nil {
		progress = func(string) {}
	}

	chunks, vectors, err := b.prepare(ctx, docs, progress)
	if err != nil {
		return nil, err
	}

	idx, err := b.newIndex(len(vectors[0]), vectors)
	if err != nil {
		return nil, err
	}
	store, err := rag.NewLocalStore(idx)
	if err != nil {
		return nil, fmt.Errorf("ingestion: new store: %w", err)
	}
	if err := store.Add(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("ingestion: populate store: %w", err)
	}

	progress(fmt.Sprintf("indexed %d chunks from %d documents", len(chunks), len(docs)))
	return store, nil
}

// BuildInto normalizes, chunks, and embeds all provided documents and
// upserts the result into an existing store (e.g. a remote Qdrant
// collection). The same first-error-aborts contract as Build applies.
// Returns the number of chunks upserted.
func (b *Builder) BuildInto(ctx context.Context, docs []rag.Document, store rag.VectorStore, progress func(msg string)) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("ingestion: store must not be nil")
	}
	if progress == nil {
		progress = func(string) {}
	}

	chunks, vectors, err := b.prepare(ctx, docs, progress)
	if err != nil {
		return 0, err
	}
	if err := store.Add(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("ingestion: populate store: %w", err)
	}

	progress(fmt.Sprintf("indexed %d chunks from %d documents", len(chunks), len(docs)))
	return len(chunks), nil
}

// prepare runs the normalize → chunk → embed portion of a build, shared by
// Build and BuildInto.
func (b *Builder) prepare(ctx context.Context, docs []rag.Document, progress func(msg string)) ([]rag.Chunk, [][]float32, error) {
	var chunks []rag.Chunk
	for _, doc := range docs {
		text := Normalize(doc.RawText)
		if text == "" {
			progress(fmt.Sprintf("skipping %s: no text after normalization", doc.ID))
			continue
		}

		spans := b.splitter.Split(text)
		for i, span := range spans {
			meta := maps.Clone(doc.Metadata)
			if meta == nil {
				meta = make(map[string]string, 1)
			}
			meta["chunk_index"] = fmt.Sprintf("%d", i)
			chunks = append(chunks, rag.Chunk{
				ID:         chunkID(doc.ID, i),
				Text:       span.Text,
				DocumentID: doc.ID,
				Offset:     span.Offset,
				Metadata:   meta,
			})
		}
		progress(fmt.Sprintf("chunked %s into %d chunks", doc.ID, len(spans)))
	}
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("ingestion: no chunks produced from %d documents", len(docs))
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += b.cfg.EmbedBatchSize {
		end := min(start+b.cfg.EmbedBatchSize, len(chunks))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Text
		}

		embeddings, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, nil, fmt.Errorf("ingestion: embedding failed for chunks %d-%d: %w", start, end-1, err)
		}
		if len(embeddings) != len(texts) {
			return nil, nil, fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(texts))
		}
		vectors = append(vectors, embeddings...)
		progress(fmt.Sprintf("embedded %d/%d chunks", end, len(chunks)))
	}

	return chunks, vectors, nil
}

// newIndex constructs the configured index kind. The ivf kind trains on the
// full vector set so cluster assignment sees every chunk.
func (b *Builder) newIndex(dim int, sample [][]float32) (index.Index, error) {
	switch b.cfg.IndexKind {
	case KindIVF:
		ivf, err := index.NewIVF(dim, b.cfg.IVFNList, b.cfg.IVFNProbe)
		if err != nil {
			return nil, fmt.Errorf("ingestion: new ivf index: %w", err)
		}
		if err := ivf.Train(sample); err != nil {
			return nil, fmt.Errorf("ingestion: train ivf index: %w", err)
		}
		return ivf, nil
	default:
		flat, err := index.NewFlat(dim)
		if err != nil {
			return nil, fmt.Errorf("ingestion: new flat index: %w", err)
		}
		return flat, nil
	}
}

// chunkID generates a deterministic ID for a document chunk based on its
// document ID and chunk index.
func chunkID(documentID string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", documentID, index)))
	return fmt.Sprintf("%x", h[:16])
}
