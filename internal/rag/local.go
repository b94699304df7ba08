package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/shahzaibkhangakhar/Textfinder/internal/index"
)

// LocalStore is the in-process VectorStore: an [index.Index] holding the
// vectors plus a parallel ordered sequence of chunk references maintained
// in lock-step with vector insertion order. The two lengths must match at
// all times; a mismatch is a fatal consistency error surfaced on the next
// operation.
type LocalStore struct {
	mu     sync.RWMutex
	index  index.Index
	chunks []Chunk
}

// NewLocalStore wraps an index into a store with an empty chunk sequence.
func NewLocalStore(idx index.Index) (*LocalStore, error) {
	if idx == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if idx.Len() != 0 {
		return nil, fmt.Errorf("rag: index must be empty, has %d vectors", idx.Len())
	}
	return &LocalStore{index: idx}, nil
}

// Add appends chunks and their embeddings. vectors[i] must be the
// embedding of chunks[i]; the batch is applied atomically or not at all.
func (s *LocalStore) Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("rag: chunks and vectors must be parallel: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Add(vectors); err != nil {
		return fmt.Errorf("rag: adding vectors: %w", err)
	}
	s.chunks = append(s.chunks, chunks...)
	return s.checkConsistencyLocked()
}

// Search returns the topK nearest chunks with their raw distances and
// similarity scores, ordered by descending score.
func (s *LocalStore) Search(ctx context.Context, vector []float32, topK int) ([]QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkConsistencyLocked(); err != nil {
		return nil, err
	}

	candidates, err := s.index.Search(vector, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: index search: %w", err)
	}

	results := make([]QueryResult, len(candidates))
	for i, c := range candidates {
		results[i] = QueryResult{
			Chunk:       s.chunks[c.Position],
			RawDistance: c.Distance,
			Score:       SimilarityFromDistance(c.Distance),
		}
	}
	return results, nil
}

// Count reports the number of stored vectors.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len(), nil
}

// Close releases nothing for the in-process store.
func (s *LocalStore) Close() error {
	return nil
}

// checkConsistencyLocked enforces the lock-step invariant between the
// chunk sequence and the index's vector count.
func (s *LocalStore) checkConsistencyLocked() error {
	if len(s.chunks) != s.index.Len() {
		return fmt.Errorf("rag: chunk sequence (%d) out of sync with index vectors (%d)", len(s.chunks), s.index.Len())
	}
	return nil
}
