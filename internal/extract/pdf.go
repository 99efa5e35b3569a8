package extract

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts the text layer of PDF documents. Scanned image-only PDFs
// have no text layer and fail with ErrExtraction; OCR is out of scope.
type PDF struct{}

// Supports accepts .pdf files.
func (PDF) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (PDF) Extract(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		// Encrypted or malformed documents surface here.
		return "", fmt.Errorf("open pdf %s: %w: %v", path, ErrExtraction, err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w: %v", path, ErrExtraction, err)
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s has no text layer (image-only?): %w", path, ErrExtraction)
	}
	return text, nil
}
