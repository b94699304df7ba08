package evallog

import (
	"math"

	"github.com/shahzaibkhangakhar/Textfinder/internal/rag"
)

// Metrics summarizes answer quality over a set of log records.
type Metrics struct {
	// TotalQueries is the number of records considered.
	TotalQueries int `json:"total_queries"`
	// QueriesWithChunks counts records where retrieval returned at least
	// one chunk.
	QueriesWithChunks int `json:"queries_with_chunks"`
	// MeanTopScore is the mean of each record's best similarity score,
	// over records that have one.
	MeanTopScore float64 `json:"mean_top_score"`
	// Matched counts records whose answer is non-empty and not the
	// no-answer marker.
	Matched int `json:"matched"`
	// Unmatched is TotalQueries minus Matched.
	Unmatched int `json:"unmatched"`
	// Accuracy is Matched/TotalQueries as a percentage, rounded to one
	// decimal place.
	Accuracy float64 `json:"accuracy"`
}

// ComputeMetrics aggregates records into Metrics. An empty input yields
// zeroed metrics.
func ComputeMetrics(records []Record) Metrics {
	var m Metrics
	m.TotalQueries = len(records)
	if m.TotalQueries == 0 {
		return m
	}

	var scoreSum float64
	var scored int
	for _, r := range records {
		if len(r.RetrievedChunks) > 0 {
			m.QueriesWithChunks++
		}
		// Scores arrive in descending order, so the first is the best.
		if len(r.RetrievalScores) > 0 {
			scoreSum += float64(r.RetrievalScores[0])
			scored++
		}
		if r.GeneratedAnswer != "" && r.GeneratedAnswer != rag.NoAnswerMarker {
			m.Matched++
		}
	}
	m.Unmatched = m.TotalQueries - m.Matched
	if scored > 0 {
		m.MeanTopScore = scoreSum / float64(scored)
	}
	m.Accuracy = math.Round(float64(m.Matched)/float64(m.TotalQueries)*1000) / 10
	return m
}
