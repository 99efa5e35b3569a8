package models

// SourceRef identifies a cited source and the best similarity any of its
// chunks scored for the query.
type SourceRef struct {
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// QueryRecord captures one completed query/response interaction for
// analytics. It is built by the session orchestrator once generation
// finishes (or the stream is finalized), handed to the analytics engine
// exactly once and discarded. Cancelled queries never become records.
type QueryRecord struct {
	Query    string `json:"query"`
	Response string `json:"response"`

	// Retrieval context
	Sources       []SourceRef `json:"sources"`
	ContextChunks []Chunk     `json:"context_chunks"`
	TopSimilarity float64     `json:"top_similarity"`
	AvgSimilarity float64     `json:"avg_similarity"`

	// Timing
	TimeToFirstTokenMs int64 `json:"time_to_first_token_ms"`
	TotalTimeMs        int64 `json:"total_time_ms"`
	TokensGenerated    int   `json:"tokens_generated"`
}
