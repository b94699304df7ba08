// Package rag defines the domain types and capability interfaces for the
// retrieval side of the pipeline: documents and chunks, embedding, vector
// storage, and retrieval. Concrete backends (the in-process local store,
// Qdrant, the HTTP embedders) satisfy these interfaces so the pipeline and
// generation layers never depend on a specific implementation.
package rag

import (
	"context"
)

// NoAnswerMarker is the canonical answer used when the generation step
// cannot find the answer in the retrieved context. The generator normalizes
// every "cannot find" phrasing to this exact string, and the evaluation
// metrics count answers equal to it as unmatched.
const NoAnswerMarker = "I cannot find this information in the provided context."

// Document is a unit of ingested source text. Documents are created at
// ingestion time and never mutated afterwards.
type Document struct {
	// ID uniquely identifies the document, typically its path relative to
	// the ingest root.
	ID string

	// RawText is the full (normalized) text content of the document.
	RawText string

	// Metadata holds arbitrary key-value pairs (source path, file type, etc.).
	Metadata map[string]string
}

// Chunk is a bounded contiguous span of a document's text, possibly
// overlapping its neighbors. Chunks are derived deterministically from a
// Document and never mutated after creation.
type Chunk struct {
	// ID uniquely identifies the chunk within the corpus.
	ID string

	// Text is the chunk's text content.
	Text string

	// DocumentID is the ID of the source document.
	DocumentID string

	// Offset is the byte offset of Text within the source document's text,
	// so document text can be reconstructed from its chunk sequence.
	Offset int

	// Metadata holds arbitrary key-value pairs inherited from the document.
	Metadata map[string]string
}

// QueryResult is one retrieval hit: a chunk together with its raw vector
// distance and the normalized similarity score derived from it.
type QueryResult struct {
	// Chunk is the retrieved chunk.
	Chunk Chunk

	// RawDistance is the squared L2 distance reported by the index.
	RawDistance float32

	// Score is the similarity derived from RawDistance via
	// [SimilarityFromDistance], in (0, 1], higher is more relevant.
	Score float32
}

// GenerationRequest carries one question and its retrieved context to the
// generation step. Context is ordered by descending relevance; when a
// prompt must be shortened, chunks are dropped from the tail.
type GenerationRequest struct {
	// Question is the user's natural-language question.
	Question string

	// Context is the retrieved chunks in descending rank order.
	Context []Chunk
}

// Embedder converts text into dense fixed-dimension vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a single text into its embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts a batch of texts into their embeddings.
	// The returned slice is parallel to the input slice.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists chunk embeddings and serves nearest-neighbor
// searches over them. Implementations must be safe to call from multiple
// goroutines.
type VectorStore interface {
	// Add stores a batch of chunks with their pre-computed embeddings.
	// The vectors slice must be parallel to chunks: vectors[i] is the
	// embedding of chunks[i].
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error

	// Search returns the topK nearest chunks for the query vector, ordered
	// by descending similarity score.
	Search(ctx context.Context, vector []float32, topK int) ([]QueryResult, error)

	// Count reports the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Retriever fetches relevant context for a query. It combines query
// embedding, vector search, score thresholding, and ranking.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns up to topK results with Score >= threshold, ordered
	// by descending score. topK <= 0 and threshold < 0 fall back to the
	// retriever's configured defaults.
	Retrieve(ctx context.Context, query string, topK int, threshold float32) ([]QueryResult, error)
}
