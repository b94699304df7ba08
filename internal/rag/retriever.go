package rag

import (
	"context"
	"fmt"
	"sort"
)

// Default retrieval parameters used when the caller passes zero values.
const (
	DefaultTopK           = 3
	DefaultScoreThreshold = 0.0
)

// DefaultRetriever implements Retriever by combining an Embedder and a
// VectorStore. It embeds the query at retrieval time, delegates the
// nearest-neighbor search to the store, then applies the score threshold
// and final ranking.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the result count used when the caller passes topK <= 0.
	defaultTopK int

	// defaultThreshold is the minimum score used when the caller passes a
	// negative threshold.
	defaultThreshold float32
}

// NewRetriever constructs a DefaultRetriever. defaultTopK <= 0 selects
// [DefaultTopK]; a negative defaultThreshold selects
// [DefaultScoreThreshold].
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int, defaultThreshold float32) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	if defaultThreshold < 0 {
		defaultThreshold = DefaultScoreThreshold
	}
	return &DefaultRetriever{
		embedder:         embedder,
		store:            store,
		defaultTopK:      defaultTopK,
		defaultThreshold: defaultThreshold,
	}, nil
}

// Retrieve embeds the query, fetches the topK nearest chunks, discards
// results scoring below threshold, and returns the rest ordered by
// descending score with ties keeping their original index order. It fails
// with [ErrEmptyIndex] when the store holds no vectors.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int, threshold float32) ([]QueryResult, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}
	if threshold < 0 {
		threshold = r.defaultThreshold
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: counting vectors: %w", err)
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query: %w", err)
	}

	results, err := r.store.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}

	kept := results[:0]
	for _, res := range results {
		if res.Score >= threshold {
			kept = append(kept, res)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	if len(kept) > topK {
		kept = kept[:topK]
	}
	return kept, nil
}
