// Package extract converts source documents into raw text for chunking.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrExtraction marks documents no text can be pulled from: image-only
// PDFs, encrypted files, empty inputs.
var ErrExtraction = errors.New("extraction failed")

// Extractor converts a document on disk into raw text.
type Extractor interface {
	// Extract returns the document's text content.
	Extract(path string) (string, error)
	// Supports reports whether the extractor handles the file.
	Supports(path string) bool
}

// ForFile picks an extractor by file extension. PDFs get the PDF
// extractor, everything else is treated as plain text.
func ForFile(path string) Extractor {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return PDF{}
	}
	return PlainText{}
}

// Extract is the convenience entry point used by the ingestion pipeline.
func Extract(path string) (string, error) {
	return ForFile(path).Extract(path)
}

// PlainText reads text and markdown files as-is.
type PlainText struct{}

// Supports accepts any non-PDF file.
func (PlainText) Supports(path string) bool {
	return !strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (PlainText) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s has no text content: %w", path, ErrExtraction)
	}
	return text, nil
}
