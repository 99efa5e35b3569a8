package analytics

import (
	"math"
	"sort"
)

// AggregatedStats is the session-level rollup consumed by dashboards.
// Every aggregate over an empty session is 0, never NaN.
type AggregatedStats struct {
	TotalQueries int            `json:"total_queries"`
	QueryTypes   map[string]int `json:"query_types"`

	AvgDistinct1          float64 `json:"avg_distinct_1"`
	AvgDistinct2          float64 `json:"avg_distinct_2"`
	AvgRepetitionScore    float64 `json:"avg_repetition_score"`
	AvgContextUtilization float64 `json:"avg_context_utilization"`
	AvgAnswerGrounding    float64 `json:"avg_answer_grounding"`
	AvgCitationCoverage   float64 `json:"avg_citation_coverage"`
	AvgRetrievalPrecision float64 `json:"avg_retrieval_precision"`
	AvgHallucinationScore float64 `json:"avg_hallucination_score"`
	AvgCompleteness       float64 `json:"avg_completeness"`
	AvgSourceDiversity    float64 `json:"avg_source_diversity"`
	AvgTopSimilarity      float64 `json:"avg_top_similarity"`
	AvgSimilarity         float64 `json:"avg_similarity"`
	AvgQueryComplexity    float64 `json:"avg_query_complexity"`
	AvgTokensPerSecond    float64 `json:"avg_tokens_per_second"`
	AvgTimeToFirstTokenMs float64 `json:"avg_time_to_first_token_ms"`

	AvgResponseLength    float64 `json:"avg_response_length"`
	MedianResponseLength float64 `json:"median_response_length"`

	AvgGenerationTimeMs    float64 `json:"avg_generation_time_ms"`
	MedianGenerationTimeMs float64 `json:"median_generation_time_ms"`
	P95GenerationTimeMs    float64 `json:"p95_generation_time_ms"`
}

// AggregatedStats computes the rollup over everything tracked so far.
func (e *Engine) AggregatedStats() AggregatedStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := e.state
	types := make(map[string]int, len(s.queryTypes))
	for k, v := range s.queryTypes {
		types[k] = v
	}

	return AggregatedStats{
		TotalQueries: len(s.distinct1),
		QueryTypes:   types,

		AvgDistinct1:          mean(s.distinct1),
		AvgDistinct2:          mean(s.distinct2),
		AvgRepetitionScore:    mean(s.repetition),
		AvgContextUtilization: mean(s.contextUtilization),
		AvgAnswerGrounding:    mean(s.answerGrounding),
		AvgCitationCoverage:   mean(s.citationCoverage),
		AvgRetrievalPrecision: mean(s.retrievalPrecision),
		AvgHallucinationScore: mean(s.hallucination),
		AvgCompleteness:       mean(s.completeness),
		AvgSourceDiversity:    mean(s.sourceDiversity),
		AvgTopSimilarity:      mean(s.topSimilarity),
		AvgSimilarity:         mean(s.avgSimilarity),
		AvgQueryComplexity:    mean(s.complexity),
		AvgTokensPerSecond:    mean(s.throughput),
		AvgTimeToFirstTokenMs: mean(s.firstTokenTimes),

		AvgResponseLength:    mean(s.responseLengths),
		MedianResponseLength: median(s.responseLengths),

		AvgGenerationTimeMs:    mean(s.generationTimes),
		MedianGenerationTimeMs: median(s.generationTimes),
		P95GenerationTimeMs:    percentile(s.generationTimes, 95),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// percentile uses the nearest-rank method: sort ascending, take the
// ceil(p/100*n)-1 index, clamped to the first element.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
