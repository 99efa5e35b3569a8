// Package vectorstore provides an in-memory brute-force cosine
// similarity index over chunk embeddings. It holds hundreds to low
// thousands of chunks, so a linear scan beats any approximate index in
// both simplicity and recall at this scale.
package vectorstore

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/doclens/doclens/internal/models"
)

// Store is an append-only in-memory vector store. All methods are
// thread-safe: a Search interleaved with an Add may miss the chunk being
// added but never observes one without its embedding.
type Store struct {
	mu        sync.RWMutex
	dimension int
	chunks    []models.Chunk
}

// New creates an empty store. The embedding dimension is fixed by the
// first Add.
func New() *Store {
	return &Store{}
}

// Add appends a chunk with its embedding. The embedding is copied so the
// caller cannot mutate stored state afterwards.
func (s *Store) Add(chunk models.Chunk, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding: %w", models.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = len(embedding)
	} else if len(embedding) != s.dimension {
		return fmt.Errorf("embedding dimension %d, store has %d: %w",
			len(embedding), s.dimension, models.ErrInvalidInput)
	}

	chunk.Embedding = make([]float32, len(embedding))
	copy(chunk.Embedding, embedding)
	s.chunks = append(s.chunks, chunk)
	return nil
}

// Search ranks all stored chunks by cosine similarity to the query
// embedding and returns at most topK results, best first. Equal
// similarities keep insertion order so results are deterministic.
func (s *Store) Search(query []float32, topK int) []models.RetrievalResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK < 1 || len(s.chunks) == 0 {
		return nil
	}

	results := make([]models.RetrievalResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		results = append(results, models.RetrievalResult{
			Chunk:      chunk,
			Similarity: CosineSimilarity(query, chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

// Clear removes all chunks, ready for a new document set.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.dimension = 0
}

// Size returns the number of stored chunks.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|). A zero-norm vector
// yields 0, never NaN.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
