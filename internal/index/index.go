// Package index implements in-process vector indexes for nearest-neighbor
// search over L2 distance: an exact brute-force index ([Flat]) and an
// approximate clustered index ([IVF]). Both report squared Euclidean
// distances, the convention of flat L2 indexes, so downstream score
// normalization behaves identically across variants.
package index

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// index's configured dimension. This is a configuration or programmer
// error; callers must treat it as fatal rather than retry.
var ErrDimensionMismatch = errors.New("index: vector dimension mismatch")

// ErrNotTrained is returned by [IVF.Add] before the index has been trained.
var ErrNotTrained = errors.New("index: index is not trained")

// Candidate is one nearest-neighbor hit: the insertion position of the
// stored vector and its squared L2 distance to the query.
type Candidate struct {
	// Position is the zero-based insertion position of the matched vector.
	Position int

	// Distance is the squared Euclidean distance to the query vector.
	Distance float32
}

// Index is the uniform contract over the exact and approximate variants.
// Train is a no-op for exact indexes; callers stay agnostic to which
// backend is active. Implementations must be safe to call from multiple
// goroutines.
type Index interface {
	// Add appends vectors to the index. The index takes ownership of the
	// slices. Positions are assigned in insertion order and never reused.
	Add(vectors [][]float32) error

	// Train prepares the index using a representative sample. Exact
	// variants ignore it.
	Train(vectors [][]float32) error

	// Search returns the k nearest stored vectors by squared L2 distance,
	// ordered by ascending distance with ties broken by insertion position.
	Search(query []float32, k int) ([]Candidate, error)

	// Trained reports whether the index is ready to accept vectors and
	// serve meaningful searches.
	Trained() bool

	// Len reports the number of stored vectors. It is monotonically
	// non-decreasing; this design has no delete.
	Len() int

	// Dim reports the configured vector dimension.
	Dim() int

	// State captures the index in its serializable form so it can be
	// persisted and rebuilt without re-embedding.
	State() State
}

// squaredL2 computes the squared Euclidean distance between two vectors of
// equal length.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// checkDim validates that every vector matches the expected dimension.
func checkDim(vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("index: vector %d has dimension %d, want %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
	}
	return nil
}
