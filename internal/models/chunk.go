// Package models defines the shared data types of the retrieval pipeline.
package models

// Chunk is a bounded contiguous fragment of a source document, the unit
// of retrieval. Chunks are created during ingestion, get their embedding
// attached immediately after, and are immutable from then on. They live
// until the store is cleared for a new document set.
type Chunk struct {
	ID string `json:"id"`

	// Content
	Text     string `json:"text"`
	Source   string `json:"source"`   // document identifier
	Position int    `json:"position"` // order within source

	// Search
	Embedding []float32 `json:"embedding,omitempty"`
}

// RetrievalResult pairs a chunk with its cosine similarity to a query
// embedding. Produced transiently per query, never persisted.
type RetrievalResult struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
