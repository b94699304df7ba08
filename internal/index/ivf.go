package index

import (
	"fmt"
	"sync"
)

// IVF is the approximate clustered index. Training partitions a
// representative sample into nlist clusters via k-means; stored vectors are
// assigned to their nearest centroid's inverted list, and a search scans
// only the nprobe nearest lists, trading recall for speed.
//
// Add fails with [ErrNotTrained] before Train has run. Search before
// training returns an empty result rather than an error; callers must
// consult Trained.
type IVF struct {
	mu         sync.RWMutex
	dim        int
	nlist      int
	nprobe     int
	trainIters int
	trained    bool
	centroids  [][]float32
	lists      [][]int
	vectors    [][]float32
}

// Default clustering parameters, used when the caller passes zero values.
const (
	defaultNlist      = 100
	defaultNprobe     = 8
	defaultTrainIters = 10
)

// NewIVF constructs an untrained approximate index. nlist is the cluster
// count and nprobe the number of clusters visited per search; zero values
// select the defaults, and nprobe is clamped to nlist.
func NewIVF(dim, nlist, nprobe int) (*IVF, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	if nlist <= 0 {
		nlist = defaultNlist
	}
	if nprobe <= 0 {
		nprobe = defaultNprobe
	}
	if nprobe > nlist {
		nprobe = nlist
	}
	return &IVF{
		dim:        dim,
		nlist:      nlist,
		nprobe:     nprobe,
		trainIters: defaultTrainIters,
	}, nil
}

// Train clusters the sample into at most nlist centroids and marks the
// index ready. The effective cluster count is capped at the sample size.
// Training a populated index is an error; build a new index instead.
func (x *IVF) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("index: training sample must not be empty")
	}
	if err := checkDim(vectors, x.dim); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.vectors) > 0 {
		return fmt.Errorf("index: cannot retrain a populated index")
	}

	nlist := x.nlist
	if nlist > len(vectors) {
		nlist = len(vectors)
	}

	x.centroids = kmeans(vectors, nlist, x.trainIters)
	x.lists = make([][]int, len(x.centroids))
	if x.nprobe > len(x.centroids) {
		x.nprobe = len(x.centroids)
	}
	x.trained = true
	return nil
}

// Add assigns each vector to its nearest centroid's inverted list.
func (x *IVF) Add(vectors [][]float32) error {
	if err := checkDim(vectors, x.dim); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.trained {
		return fmt.Errorf("index: add before train: %w", ErrNotTrained)
	}

	for _, v := range vectors {
		pos := len(x.vectors)
		c := nearestCentroid(v, x.centroids)
		x.lists[c] = append(x.lists[c], pos)
		x.vectors = append(x.vectors, v)
	}
	return nil
}

// Trained reports whether Train has completed.
func (x *IVF) Trained() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.trained
}

// Search scans the nprobe nearest inverted lists and returns the k nearest
// vectors found there. An untrained or empty index yields an empty result.
func (x *IVF) Search(query []float32, k int) ([]Candidate, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("index: query has dimension %d, want %d: %w", len(query), x.dim, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.trained || len(x.vectors) == 0 {
		return []Candidate{}, nil
	}

	// Rank centroids by distance to the query, then scan the closest
	// nprobe inverted lists.
	order := make([]Candidate, len(x.centroids))
	for i, c := range x.centroids {
		order[i] = Candidate{Position: i, Distance: squaredL2(query, c)}
	}
	sortCandidates(order)

	var candidates []Candidate
	for p := 0; p < x.nprobe && p < len(order); p++ {
		for _, pos := range x.lists[order[p].Position] {
			candidates = append(candidates, Candidate{
				Position: pos,
				Distance: squaredL2(query, x.vectors[pos]),
			})
		}
	}
	sortCandidates(candidates)

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// Len reports the number of stored vectors.
func (x *IVF) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Dim reports the configured vector dimension.
func (x *IVF) Dim() int {
	return x.dim
}

// nearestCentroid returns the position of the centroid closest to v, ties
// broken by centroid position.
func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := squaredL2(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := squaredL2(v, centroids[i]); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// kmeans runs plain Lloyd iterations over the sample. Initial centroids are
// evenly spaced across the sample in input order, which keeps training
// fully deterministic. Empty clusters keep their previous centroid.
func kmeans(vectors [][]float32, k, iters int) [][]float32 {
	dim := len(vectors[0])

	centroids := make([][]float32, k)
	for i := range centroids {
		centroids[i] = append([]float32(nil), vectors[i*len(vectors)/k]...)
	}

	assign := make([]int, len(vectors))
	for iter := 0; iter < iters; iter++ {
		changed := false
		for i, v := range vectors {
			c := nearestCentroid(v, centroids)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for j, x := range v {
				sums[c][j] += x
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float32(counts[c])
			}
		}
	}
	return centroids
}
