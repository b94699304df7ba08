package rag

// SimilarityFromDistance converts a raw squared L2 distance d into a
// similarity score 1/(1+d). The mapping is monotonically decreasing in d,
// bounded in (0, 1], and equals 1 exactly when d is 0.
func SimilarityFromDistance(d float32) float32 {
	return 1.0 / (1.0 + d)
}
