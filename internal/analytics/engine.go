// Package analytics scores query/response pairs across generation
// quality, retrieval quality and grounding dimensions, and maintains
// running aggregates for the session.
package analytics

import (
	"sync"

	"github.com/doclens/doclens/internal/models"
)

// QueryMetrics is the full scorecard for one tracked interaction,
// returned synchronously from TrackQuery.
type QueryMetrics struct {
	// Generation quality
	Distinct1       float64 `json:"distinct_1"`
	Distinct2       float64 `json:"distinct_2"`
	RepetitionScore float64 `json:"repetition_score"`
	ResponseLength  int     `json:"response_length"`

	// Retrieval quality and grounding
	ContextUtilization float64 `json:"context_utilization"`
	AnswerGrounding    float64 `json:"answer_grounding"`
	CitationCoverage   float64 `json:"citation_coverage"`
	RetrievalPrecision float64 `json:"retrieval_precision"`
	HallucinationScore float64 `json:"hallucination_score"`
	Completeness       float64 `json:"completeness"`
	SourceDiversity    float64 `json:"source_diversity"`
	TopSimilarity      float64 `json:"top_similarity"`
	AvgSimilarity      float64 `json:"avg_similarity"`

	// Query shape
	QueryType       string  `json:"query_type"`
	QueryComplexity float64 `json:"query_complexity"`

	// Performance
	TimeToFirstTokenMs int64   `json:"time_to_first_token_ms"`
	TotalTimeMs        int64   `json:"total_time_ms"`
	TokensGenerated    int     `json:"tokens_generated"`
	TokensPerSecond    float64 `json:"tokens_per_second"`
}

// state holds the per-session metric series. Sequences grow without
// bound for the lifetime of the session; only Reset empties them.
type state struct {
	distinct1          []float64
	distinct2          []float64
	repetition         []float64
	responseLengths    []float64
	contextUtilization []float64
	answerGrounding    []float64
	citationCoverage   []float64
	retrievalPrecision []float64
	hallucination      []float64
	completeness       []float64
	sourceDiversity    []float64
	topSimilarity      []float64
	avgSimilarity      []float64
	complexity         []float64
	firstTokenTimes    []float64
	generationTimes    []float64
	throughput         []float64

	queryTypes map[string]int
}

func newState() *state {
	return &state{queryTypes: make(map[string]int)}
}

// Engine is the per-session analytics accumulator. It is an owned object
// constructed per session, never a package singleton, so parallel
// sessions and tests stay isolated. All methods are thread-safe.
type Engine struct {
	mu    sync.RWMutex
	state *state
}

// NewEngine creates an empty analytics engine.
func NewEngine() *Engine {
	return &Engine{state: newState()}
}

// TrackQuery scores one completed interaction and folds it into the
// running aggregates. Callers must invoke it exactly once per real
// interaction: tracking the same record twice double-counts it.
func (e *Engine) TrackQuery(rec models.QueryRecord) QueryMetrics {
	responseTokens := tokenize(rec.Response)

	m := QueryMetrics{
		Distinct1:       distinct1(responseTokens),
		Distinct2:       distinct2(responseTokens),
		RepetitionScore: repetitionScore(rec.Response),
		ResponseLength:  len(rec.Response),

		ContextUtilization: contextUtilization(rec.Response, rec.ContextChunks),
		AnswerGrounding:    answerGrounding(rec.Response, rec.ContextChunks),
		CitationCoverage:   citationCoverage(rec.Sources, rec.ContextChunks),
		RetrievalPrecision: retrievalPrecision(rec.Sources),
		HallucinationScore: hallucinationScore(rec.Response, rec.ContextChunks),
		Completeness:       completeness(rec.Query, rec.Response),
		SourceDiversity:    sourceDiversity(rec.Sources),
		TopSimilarity:      rec.TopSimilarity,
		AvgSimilarity:      rec.AvgSimilarity,

		QueryType:       ClassifyQuery(rec.Query),
		QueryComplexity: QueryComplexity(rec.Query),

		TimeToFirstTokenMs: rec.TimeToFirstTokenMs,
		TotalTimeMs:        rec.TotalTimeMs,
		TokensGenerated:    rec.TokensGenerated,
		TokensPerSecond:    throughput(rec.TokensGenerated, rec.TotalTimeMs),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	s.distinct1 = append(s.distinct1, m.Distinct1)
	s.distinct2 = append(s.distinct2, m.Distinct2)
	s.repetition = append(s.repetition, m.RepetitionScore)
	s.responseLengths = append(s.responseLengths, float64(m.ResponseLength))
	s.contextUtilization = append(s.contextUtilization, m.ContextUtilization)
	s.answerGrounding = append(s.answerGrounding, m.AnswerGrounding)
	s.citationCoverage = append(s.citationCoverage, m.CitationCoverage)
	s.retrievalPrecision = append(s.retrievalPrecision, m.RetrievalPrecision)
	s.hallucination = append(s.hallucination, m.HallucinationScore)
	s.completeness = append(s.completeness, m.Completeness)
	s.sourceDiversity = append(s.sourceDiversity, m.SourceDiversity)
	s.topSimilarity = append(s.topSimilarity, m.TopSimilarity)
	s.avgSimilarity = append(s.avgSimilarity, m.AvgSimilarity)
	s.complexity = append(s.complexity, m.QueryComplexity)
	s.firstTokenTimes = append(s.firstTokenTimes, float64(m.TimeToFirstTokenMs))
	s.generationTimes = append(s.generationTimes, float64(m.TotalTimeMs))
	s.throughput = append(s.throughput, m.TokensPerSecond)
	s.queryTypes[m.QueryType]++

	return m
}

// TrackedQueries returns how many interactions have been tracked.
func (e *Engine) TrackedQueries() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.state.distinct1)
}

// Reset discards all accumulated metrics, for a fresh session.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = newState()
}
