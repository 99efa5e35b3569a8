// Package chunker splits extracted document text into overlapping
// fixed-size fragments for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/doclens/doclens/internal/models"
	"github.com/google/uuid"
)

// Config defines chunking parameters.
type Config struct {
	// Size is the window length in characters.
	Size int
	// Overlap is the character overlap between adjacent windows.
	Overlap int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Size:    500,
		Overlap: 100,
	}
}

// Split scans text producing successive windows of length size, each
// window starting size-overlap characters after the previous one. The
// final window covers the remainder and may be shorter. Splitting is
// purely positional: document structure is too unreliable for sentence
// or paragraph awareness to pay off here.
//
// Windows that are empty after trimming whitespace are dropped.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size %d: %w", size, models.ErrInvalidInput)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap %d with size %d: %w", overlap, size, models.ErrInvalidInput)
	}

	runes := []rune(text)
	stride := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end >= len(runes) {
			// Remainder window, may be shorter than size and may
			// duplicate trailing overlap of the previous window.
			if window := string(runes[start:]); strings.TrimSpace(window) != "" {
				chunks = append(chunks, window)
			}
			break
		}
		if window := string(runes[start:end]); strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}
	}

	return chunks, nil
}

// Chunker produces chunk records from document text.
type Chunker struct {
	config Config
}

// New creates a Chunker with the given config.
func New(config Config) *Chunker {
	return &Chunker{config: config}
}

// ChunkDocument splits text and wraps each window in a Chunk carrying
// the source identifier and its ordinal position. Embeddings are
// attached later by the ingestion pipeline.
func (c *Chunker) ChunkDocument(source, text string) ([]models.Chunk, error) {
	windows, err := Split(text, c.config.Size, c.config.Overlap)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", source, err)
	}

	chunks := make([]models.Chunk, 0, len(windows))
	for i, window := range windows {
		chunks = append(chunks, models.Chunk{
			ID:       uuid.New().String(),
			Text:     window,
			Source:   source,
			Position: i,
		})
	}
	return chunks, nil
}
