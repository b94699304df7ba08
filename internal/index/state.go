package index

import "fmt"

// Index kind tags used in serialized state.
const (
	KindFlat = "flat"
	KindIVF  = "ivf"
)

// State is the serializable form of an index: everything needed to rebuild
// it without re-embedding. The fields are exported for gob encoding.
type State struct {
	// Kind is KindFlat or KindIVF.
	Kind string

	// Dim is the vector dimension.
	Dim int

	// Nlist and Nprobe are the clustering parameters (IVF only).
	Nlist  int
	Nprobe int

	// Centroids are the trained cluster centers (IVF only).
	Centroids [][]float32

	// Vectors are the stored vectors in insertion order.
	Vectors [][]float32
}

// State captures the index for serialization.
func (f *Flat) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return State{
		Kind:    KindFlat,
		Dim:     f.dim,
		Vectors: f.vectors,
	}
}

// State captures the index, its clustering parameters, and its trained
// centroids for serialization.
func (x *IVF) State() State {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return State{
		Kind:      KindIVF,
		Dim:       x.dim,
		Nlist:     x.nlist,
		Nprobe:    x.nprobe,
		Centroids: x.centroids,
		Vectors:   x.vectors,
	}
}

// FromState rebuilds an index from its serialized form. IVF indexes restore
// their centroids and reassign the stored vectors, which is deterministic,
// so a reloaded index answers searches identically to the original.
func FromState(s State) (Index, error) {
	switch s.Kind {
	case KindFlat:
		f, err := NewFlat(s.Dim)
		if err != nil {
			return nil, err
		}
		if err := f.Add(s.Vectors); err != nil {
			return nil, err
		}
		return f, nil

	case KindIVF:
		x, err := NewIVF(s.Dim, s.Nlist, s.Nprobe)
		if err != nil {
			return nil, err
		}
		if len(s.Centroids) == 0 {
			return x, nil
		}
		if err := checkDim(s.Centroids, s.Dim); err != nil {
			return nil, err
		}
		x.centroids = s.Centroids
		x.lists = make([][]int, len(s.Centroids))
		if x.nprobe > len(s.Centroids) {
			x.nprobe = len(s.Centroids)
		}
		x.trained = true
		if err := x.Add(s.Vectors); err != nil {
			return nil, err
		}
		return x, nil

	default:
		return nil, fmt.Errorf("index: unknown index kind %q", s.Kind)
	}
}
