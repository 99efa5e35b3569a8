package session

import (
	"fmt"
	"strings"

	"github.com/doclens/doclens/internal/models"
)

// buildContextBlock formats retrieved chunks for the prompt, each labeled
// with its source so the model can cite it.
func buildContextBlock(results []models.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", res.Chunk.Source, res.Chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}

// buildSystemPrompt folds the retrieved context into the configured
// system prompt. Prompt order is system instructions, labeled context,
// then (separately) chat history and the current query.
func buildSystemPrompt(systemPrompt string, results []models.RetrievalResult) string {
	contextBlock := buildContextBlock(results)
	if contextBlock == "" {
		return systemPrompt + "\n\nNo documents have been indexed for this session. Let the user know if their question needs document context."
	}
	return systemPrompt + "\n\nContext:\n" + contextBlock
}
