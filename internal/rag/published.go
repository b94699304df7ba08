package rag

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Published is a VectorStore handle whose backing store can be replaced
// atomically. Index rebuilds construct a complete new [LocalStore] and
// Swap it in; in-flight readers keep the store they started with, so a
// rebuild is never visible as in-place mutation.
type Published struct {
	current atomic.Pointer[LocalStore]
}

// NewPublished wraps store, which may be nil when no index exists yet.
func NewPublished(store *LocalStore) *Published {
	p := &Published{}
	if store != nil {
		p.current.Store(store)
	}
	return p
}

// Swap publishes next and returns the previously published store, which
// may be nil.
func (p *Published) Swap(next *LocalStore) *LocalStore {
	return p.current.Swap(next)
}

// Current returns the currently published store, or nil if none has been
// published.
func (p *Published) Current() *LocalStore {
	return p.current.Load()
}

// Add delegates to the currently published store.
func (p *Published) Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	s := p.current.Load()
	if s == nil {
		return fmt.Errorf("rag: no store published")
	}
	return s.Add(ctx, chunks, vectors)
}

// Search delegates to the currently published store. With no published
// store the index is empty by definition.
func (p *Published) Search(ctx context.Context, vector []float32, topK int) ([]QueryResult, error) {
	s := p.current.Load()
	if s == nil {
		return nil, ErrEmptyIndex
	}
	return s.Search(ctx, vector, topK)
}

// Count reports the vector count of the currently published store, zero
// when none is published.
func (p *Published) Count(ctx context.Context) (int, error) {
	s := p.current.Load()
	if s == nil {
		return 0, nil
	}
	return s.Count(ctx)
}

// Close closes the currently published store.
func (p *Published) Close() error {
	if s := p.current.Load(); s != nil {
		return s.Close()
	}
	return nil
}
