// Package session wires ingestion (extract, chunk, embed, store) and
// query handling (retrieve, prompt, generate, track) into one owned
// per-session orchestrator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doclens/doclens/internal/analytics"
	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/models"
	"github.com/doclens/doclens/internal/retriever"
	"github.com/doclens/doclens/internal/vectorstore"
)

// Embedder is the embedding collaborator.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator is the generative model collaborator.
type Generator interface {
	GenerateChat(ctx context.Context, systemPrompt string, history []llm.ChatMessage, query string) (string, error)
	GenerateChatStream(ctx context.Context, systemPrompt string, history []llm.ChatMessage, query string, onToken func(token string) error) (string, error)
}

// ExtractFunc converts a document into raw text.
type ExtractFunc func(path string) (string, error)

// Options configures a session.
type Options struct {
	Chunk           chunker.Config
	TopK            int
	SimilarityFloor float64
	SystemPrompt    string
	HistoryLimit    int // turns of history kept, 0 disables history
	IngestWorkers   int
}

// OptionsFromConfig maps application config onto session options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Chunk:           chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		TopK:            cfg.TopK,
		SimilarityFloor: cfg.SimilarityFloor,
		SystemPrompt:    cfg.SystemPrompt,
		HistoryLimit:    cfg.HistoryLimit,
		IngestWorkers:   4,
	}
}

// Answer is the result of one query.
type Answer struct {
	Response string                 `json:"response"`
	Sources  []models.SourceRef     `json:"sources"`
	Metrics  analytics.QueryMetrics `json:"metrics"`
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	DocumentsIndexed int
	ChunksIndexed    int
	Errors           []string
}

// Session owns the vector store, chat history and analytics engine for
// one document set. Constructed per session so tests and parallel
// sessions stay isolated.
type Session struct {
	opts      Options
	store     *vectorstore.Store
	chunker   *chunker.Chunker
	retriever *retriever.Retriever
	engine    *analytics.Engine
	embedder  Embedder
	model     Generator
	extractFn ExtractFunc

	mu      sync.Mutex
	history []llm.ChatMessage
}

// New creates a Session with its own store and analytics engine.
func New(opts Options, embedder Embedder, model Generator) *Session {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = config.DefaultSystemPrompt
	}
	if opts.IngestWorkers <= 0 {
		opts.IngestWorkers = 4
	}
	if opts.Chunk.Size <= 0 {
		opts.Chunk = chunker.DefaultConfig()
	}

	store := vectorstore.New()
	return &Session{
		opts:      opts,
		store:     store,
		chunker:   chunker.New(opts.Chunk),
		retriever: retriever.New(store, embedder, retriever.Options{TopK: opts.TopK, SimilarityFloor: opts.SimilarityFloor}),
		engine:    analytics.NewEngine(),
		embedder:  embedder,
		model:     model,
		extractFn: extract.Extract,
	}
}

// SetExtractor overrides the text extractor collaborator, for tests and
// custom document types.
func (s *Session) SetExtractor(fn ExtractFunc) {
	s.extractFn = fn
}

// Analytics exposes the session's analytics engine.
func (s *Session) Analytics() *analytics.Engine {
	return s.engine
}

// Store exposes the session's vector store.
func (s *Session) Store() *vectorstore.Store {
	return s.store
}

// IngestFile extracts, chunks, embeds and indexes one document. Each
// chunk gets its embedding attached before it becomes visible to search.
func (s *Session) IngestFile(ctx context.Context, path string) (int, error) {
	text, err := s.extractFn(path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	return s.IngestText(ctx, filepath.Base(path), text)
}

// IngestText chunks, embeds and indexes already-extracted text under the
// given source name.
func (s *Session) IngestText(ctx context.Context, source, text string) (int, error) {
	chunks, err := s.chunker.ChunkDocument(source, text)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, chunk := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return indexed, fmt.Errorf("embed chunk %d of %s: %w", chunk.Position, source, err)
		}
		if err := s.store.Add(chunk, embedding); err != nil {
			return indexed, fmt.Errorf("index chunk %d of %s: %w", chunk.Position, source, err)
		}
		indexed++
	}

	slog.Info("document indexed", "source", source, "chunks", indexed)
	return indexed, nil
}

// IngestFiles indexes a batch of documents over a bounded worker pool.
// One failing document does not abort the rest; fatal provider errors
// (dead API key, exhausted credits) cancel the remaining work. onProgress
// may be nil.
func (s *Session) IngestFiles(ctx context.Context, paths []string, onProgress func(done, total int)) (*IngestResult, error) {
	if len(paths) == 0 {
		return &IngestResult{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		docsIndexed   atomic.Int32
		chunksIndexed atomic.Int32
		done          atomic.Int32
		errorsMu      sync.Mutex
		errs          []string
		fatalErr      error
	)

	pathChan := make(chan string, len(paths))
	var wg sync.WaitGroup

	for i := 0; i < s.opts.IngestWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathChan {
				if ctx.Err() != nil {
					return
				}

				chunks, err := s.IngestFile(ctx, path)
				chunksIndexed.Add(int32(chunks))
				if err != nil {
					errorsMu.Lock()
					errs = append(errs, fmt.Sprintf("%s: %v", path, err))
					if errors.Is(err, llm.ErrFatalAPI) && fatalErr == nil {
						fatalErr = err
						cancel()
					}
					errorsMu.Unlock()
				} else {
					docsIndexed.Add(1)
				}

				if onProgress != nil {
					onProgress(int(done.Add(1)), len(paths))
				}
			}
		}()
	}

	for _, path := range paths {
		pathChan <- path
	}
	close(pathChan)
	wg.Wait()

	result := &IngestResult{
		DocumentsIndexed: int(docsIndexed.Load()),
		ChunksIndexed:    int(chunksIndexed.Load()),
		Errors:           errs,
	}

	slog.Info("ingestion complete", "documents", result.DocumentsIndexed, "chunks", result.ChunksIndexed, "errors", len(errs))

	if fatalErr != nil {
		return result, fatalErr
	}
	return result, nil
}

// Ask retrieves context, generates an answer and tracks the interaction.
// A failed or cancelled generation is never tracked.
func (s *Session) Ask(ctx context.Context, query string) (*Answer, error) {
	return s.ask(ctx, query, nil)
}

// AskStream is Ask with token streaming. Analytics are finalized only
// once the stream completes; partial output from a cancelled stream is
// discarded untracked.
func (s *Session) AskStream(ctx context.Context, query string, onToken func(token string) error) (*Answer, error) {
	if onToken == nil {
		return nil, fmt.Errorf("onToken callback required")
	}
	return s.ask(ctx, query, onToken)
}

func (s *Session) ask(ctx context.Context, query string, onToken func(token string) error) (*Answer, error) {
	results, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	systemPrompt := buildSystemPrompt(s.opts.SystemPrompt, results)
	history := s.historySnapshot()

	var (
		response    string
		firstToken  time.Duration
		tokenCount  int
		start       = time.Now()
		sawFirstTok bool
	)

	if onToken != nil {
		response, err = s.model.GenerateChatStream(ctx, systemPrompt, history, query, func(token string) error {
			if !sawFirstTok {
				firstToken = time.Since(start)
				sawFirstTok = true
			}
			tokenCount++
			return onToken(token)
		})
	} else {
		response, err = s.model.GenerateChat(ctx, systemPrompt, history, query)
	}
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if ctx.Err() != nil {
		// Cancellation raced the final token: treat as cancelled, the
		// interaction must not reach analytics.
		return nil, ctx.Err()
	}

	total := time.Since(start)
	if !sawFirstTok {
		firstToken = total
	}
	if tokenCount == 0 {
		tokenCount = len(strings.Fields(response))
	}

	rec := models.QueryRecord{
		Query:              query,
		Response:           response,
		ContextChunks:      make([]models.Chunk, 0, len(results)),
		Sources:            make([]models.SourceRef, 0, len(results)),
		TimeToFirstTokenMs: firstToken.Milliseconds(),
		TotalTimeMs:        total.Milliseconds(),
		TokensGenerated:    tokenCount,
	}
	for i, res := range results {
		rec.ContextChunks = append(rec.ContextChunks, res.Chunk)
		rec.Sources = append(rec.Sources, models.SourceRef{Source: res.Chunk.Source, Similarity: res.Similarity})
		if i == 0 || res.Similarity > rec.TopSimilarity {
			rec.TopSimilarity = res.Similarity
		}
		rec.AvgSimilarity += res.Similarity
	}
	if len(results) > 0 {
		rec.AvgSimilarity /= float64(len(results))
	}

	metrics := s.engine.TrackQuery(rec)
	s.appendHistory(query, response)

	slog.Debug("query tracked",
		"query_type", metrics.QueryType,
		"sources", len(rec.Sources),
		"total_ms", rec.TotalTimeMs,
		"tokens", rec.TokensGenerated)

	return &Answer{
		Response: response,
		Sources:  rec.Sources,
		Metrics:  metrics,
	}, nil
}

// historySnapshot copies the bounded chat history for prompt assembly.
func (s *Session) historySnapshot() []llm.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) appendHistory(query, response string) {
	if s.opts.HistoryLimit <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		llm.ChatMessage{Role: "user", Content: query},
		llm.ChatMessage{Role: "assistant", Content: response},
	)
	if limit := s.opts.HistoryLimit * 2; len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
}

// Reset clears the store, chat history and analytics for a new document
// set.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
	s.store.Clear()
	s.engine.Reset()
}

// Stats returns the session's aggregated analytics.
func (s *Session) Stats() analytics.AggregatedStats {
	return s.engine.AggregatedStats()
}
