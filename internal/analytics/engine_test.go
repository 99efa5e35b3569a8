package analytics

import (
	"math"
	"testing"

	"github.com/doclens/doclens/internal/models"
)

func TestTrackQuery_NoContextDefaults(t *testing.T) {
	engine := NewEngine()

	m := engine.TrackQuery(models.QueryRecord{
		Query:    "What does the paper conclude about scaling laws?",
		Response: "The paper concludes that scaling laws hold across modalities.",
	})

	if !almostEqual(m.ContextUtilization, 0) {
		t.Errorf("ContextUtilization = %v, want 0", m.ContextUtilization)
	}
	if !almostEqual(m.AnswerGrounding, 0) {
		t.Errorf("AnswerGrounding = %v, want 0", m.AnswerGrounding)
	}
	if !almostEqual(m.CitationCoverage, 0) {
		t.Errorf("CitationCoverage = %v, want 0", m.CitationCoverage)
	}
	if !almostEqual(m.HallucinationScore, 1) {
		t.Errorf("HallucinationScore = %v, want 1", m.HallucinationScore)
	}
}

func TestTrackQuery_FullRecord(t *testing.T) {
	engine := NewEngine()

	chunks := []models.Chunk{
		{Text: "Transformers use self-attention to process sequences in parallel.", Source: "attention.pdf"},
		{Text: "Recurrent networks process sequences step by step.", Source: "rnn.pdf"},
	}
	m := engine.TrackQuery(models.QueryRecord{
		Query:    "Compare transformers against recurrent networks",
		Response: "Transformers process sequences in parallel through self-attention. Recurrent networks instead process sequences step by step.",
		Sources: []models.SourceRef{
			{Source: "attention.pdf", Similarity: 0.82},
			{Source: "rnn.pdf", Similarity: 0.74},
		},
		ContextChunks:      chunks,
		TopSimilarity:      0.82,
		AvgSimilarity:      0.78,
		TimeToFirstTokenMs: 120,
		TotalTimeMs:        2000,
		TokensGenerated:    40,
	})

	if m.QueryType != QueryTypeComparison {
		t.Errorf("QueryType = %q, want comparison", m.QueryType)
	}
	if !almostEqual(m.RetrievalPrecision, 1) {
		t.Errorf("RetrievalPrecision = %v, want 1", m.RetrievalPrecision)
	}
	if !almostEqual(m.CitationCoverage, 1) {
		t.Errorf("CitationCoverage = %v, want 1", m.CitationCoverage)
	}
	if !almostEqual(m.SourceDiversity, 1) {
		t.Errorf("SourceDiversity = %v, want 1", m.SourceDiversity)
	}
	if m.AnswerGrounding <= 0.5 {
		t.Errorf("AnswerGrounding = %v, want > 0.5 for a grounded answer", m.AnswerGrounding)
	}
	if m.HallucinationScore >= 0.5 {
		t.Errorf("HallucinationScore = %v, want < 0.5 for a grounded answer", m.HallucinationScore)
	}
	if !almostEqual(m.TokensPerSecond, 20) {
		t.Errorf("TokensPerSecond = %v, want 20", m.TokensPerSecond)
	}
	if m.ResponseLength == 0 || m.Distinct1 <= 0 {
		t.Errorf("generation metrics missing: length=%d distinct1=%v", m.ResponseLength, m.Distinct1)
	}

	if engine.TrackedQueries() != 1 {
		t.Errorf("TrackedQueries() = %d, want 1", engine.TrackedQueries())
	}
}

func TestAggregatedStats_Empty(t *testing.T) {
	stats := NewEngine().AggregatedStats()

	if stats.TotalQueries != 0 {
		t.Errorf("TotalQueries = %d, want 0", stats.TotalQueries)
	}
	for name, v := range map[string]float64{
		"AvgDistinct1":           stats.AvgDistinct1,
		"AvgHallucinationScore":  stats.AvgHallucinationScore,
		"AvgResponseLength":      stats.AvgResponseLength,
		"MedianResponseLength":   stats.MedianResponseLength,
		"AvgGenerationTimeMs":    stats.AvgGenerationTimeMs,
		"MedianGenerationTimeMs": stats.MedianGenerationTimeMs,
		"P95GenerationTimeMs":    stats.P95GenerationTimeMs,
		"AvgTokensPerSecond":     stats.AvgTokensPerSecond,
	} {
		if v != 0 || math.IsNaN(v) {
			t.Errorf("%s = %v on empty engine, want 0", name, v)
		}
	}
}

func TestAggregatedStats_RollsUp(t *testing.T) {
	engine := NewEngine()

	times := []int64{100, 200, 300, 400}
	for _, ms := range times {
		engine.TrackQuery(models.QueryRecord{
			Query:           "What is attention?",
			Response:        "Attention weighs token interactions.",
			TotalTimeMs:     ms,
			TokensGenerated: 10,
		})
	}

	stats := engine.AggregatedStats()

	if stats.TotalQueries != 4 {
		t.Errorf("TotalQueries = %d, want 4", stats.TotalQueries)
	}
	if !almostEqual(stats.AvgGenerationTimeMs, 250) {
		t.Errorf("AvgGenerationTimeMs = %v, want 250", stats.AvgGenerationTimeMs)
	}
	if !almostEqual(stats.MedianGenerationTimeMs, 250) {
		t.Errorf("MedianGenerationTimeMs = %v, want 250", stats.MedianGenerationTimeMs)
	}
	// Nearest rank: ceil(0.95*4)-1 = 3.
	if !almostEqual(stats.P95GenerationTimeMs, 400) {
		t.Errorf("P95GenerationTimeMs = %v, want 400", stats.P95GenerationTimeMs)
	}
	if stats.QueryTypes[QueryTypeQuestion] != 4 {
		t.Errorf("QueryTypes[question] = %d, want 4", stats.QueryTypes[QueryTypeQuestion])
	}
	// Every query had no context: hallucination is maximal throughout.
	if !almostEqual(stats.AvgHallucinationScore, 1) {
		t.Errorf("AvgHallucinationScore = %v, want 1", stats.AvgHallucinationScore)
	}
}

func TestEngine_Reset(t *testing.T) {
	engine := NewEngine()
	engine.TrackQuery(models.QueryRecord{Query: "what?", Response: "answer"})

	engine.Reset()

	if engine.TrackedQueries() != 0 {
		t.Errorf("TrackedQueries() after Reset = %d, want 0", engine.TrackedQueries())
	}
	if stats := engine.AggregatedStats(); stats.TotalQueries != 0 {
		t.Errorf("TotalQueries after Reset = %d, want 0", stats.TotalQueries)
	}
}

func TestMedianAndPercentile(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		wantMedian float64
		wantP95    float64
	}{
		{"empty", nil, 0, 0},
		{"single", []float64{7}, 7, 7},
		{"odd", []float64{3, 1, 2}, 2, 3},
		{"even", []float64{4, 1, 3, 2}, 2.5, 4},
		{"twenty", seq(1, 20), 10.5, 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.values); !almostEqual(got, tt.wantMedian) {
				t.Errorf("median() = %v, want %v", got, tt.wantMedian)
			}
			if got := percentile(tt.values, 95); !almostEqual(got, tt.wantP95) {
				t.Errorf("percentile(95) = %v, want %v", got, tt.wantP95)
			}
		})
	}
}

func seq(from, to float64) []float64 {
	var out []float64
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}
