// Package retriever ranks stored chunks against a query embedding and
// applies the top-K and similarity floor policy.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doclens/doclens/internal/models"
	"github.com/doclens/doclens/internal/vectorstore"
)

// Embedder is the embedding collaborator consumed by the retriever.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures retrieval policy.
type Options struct {
	// TopK is the number of highest-similarity chunks to return.
	TopK int
	// SimilarityFloor drops results scoring below it. Zero keeps
	// everything.
	SimilarityFloor float64
}

// Retriever embeds queries and searches the vector store.
type Retriever struct {
	store    *vectorstore.Store
	embedder Embedder
	opts     Options
}

// New creates a Retriever over the given store and embedder.
func New(store *vectorstore.Store, embedder Embedder, opts Options) *Retriever {
	if opts.TopK < 1 {
		opts.TopK = 3
	}
	return &Retriever{store: store, embedder: embedder, opts: opts}
}

// Retrieve embeds the query and returns the surviving top-K results.
// An empty store is a valid state, not an error: the caller may still
// answer from chat history alone.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.RetrievalResult, error) {
	if r.store.Size() == 0 {
		return nil, nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results := r.store.Search(embedding, r.opts.TopK)
	if r.opts.SimilarityFloor > 0 {
		kept := results[:0]
		for _, res := range results {
			if res.Similarity >= r.opts.SimilarityFloor {
				kept = append(kept, res)
			}
		}
		results = kept
	}

	slog.Debug("retrieved context", "query_len", len(query), "results", len(results), "top_k", r.opts.TopK)
	return results, nil
}
