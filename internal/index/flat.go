package index

import (
	"fmt"
	"sort"
	"sync"
)

// Flat is the exact index: every search computes the distance to every
// stored vector and returns the true k-nearest. Deterministic, O(n·d) per
// query.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

// NewFlat constructs an empty exact index for vectors of the given
// dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Add appends vectors to the index.
func (f *Flat) Add(vectors [][]float32) error {
	if err := checkDim(vectors, f.dim); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Train is a no-op; the exact index needs no preparation.
func (f *Flat) Train(vectors [][]float32) error {
	return nil
}

// Trained always reports true for the exact index.
func (f *Flat) Trained() bool {
	return true
}

// Search returns the k nearest stored vectors by squared L2 distance.
// Searching an empty index returns an empty result.
func (f *Flat) Search(query []float32, k int) ([]Candidate, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("index: query has dimension %d, want %d: %w", len(query), f.dim, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	candidates := make([]Candidate, len(f.vectors))
	for i, v := range f.vectors {
		candidates[i] = Candidate{Position: i, Distance: squaredL2(query, v)}
	}
	sortCandidates(candidates)

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// Len reports the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dim reports the configured vector dimension.
func (f *Flat) Dim() int {
	return f.dim
}

// sortCandidates orders candidates by ascending distance, breaking ties by
// insertion position so results are deterministic.
func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Position < candidates[j].Position
	})
}
