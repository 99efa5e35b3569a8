package analytics

import (
	"strings"
	"unicode"

	"github.com/doclens/doclens/internal/models"
)

// Text-statistics metric functions. Every function is total: degenerate
// input (empty responses, no context, zero counts) yields the documented
// neutral default instead of NaN or an error.

const (
	groundedContentWordRate     = 0.30
	hallucinatedContentWordRate = 0.20
	precisionSimilarityFloor    = 0.5
	minGroundableSentenceLen    = 20
	minContextWordLen           = 3
	minContentWordLen           = 4
)

// completenessStopwords are query words too generic to expect verbatim
// in a good answer.
var completenessStopwords = map[string]struct{}{
	"what": {}, "when": {}, "where": {}, "which": {},
	"could": {}, "would": {}, "should": {},
}

// tokenize lower-cases and whitespace-splits text.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// splitSentences splits on sentence terminators, trimming and dropping
// empty fragments.
func splitSentences(text string) []string {
	fragments := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if trimmed := strings.TrimSpace(fragment); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// trimPunct strips punctuation from token edges so "change?" and
// "change" count as the same word.
func trimPunct(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// contentWords returns punctuation-trimmed tokens longer than minLen
// characters.
func contentWords(tokens []string, minLen int) []string {
	words := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if word := trimPunct(token); len(word) > minLen {
			words = append(words, word)
		}
	}
	return words
}

// distinct1 is the ratio of unique unigrams to total tokens.
func distinct1(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		unique[token] = struct{}{}
	}
	return float64(len(unique)) / float64(len(tokens))
}

// distinct2 is the ratio of unique bigrams to token count minus one.
// Needs at least two tokens.
func distinct2(tokens []string) float64 {
	if len(tokens) < 2 {
		return 0
	}
	unique := make(map[string]struct{}, len(tokens)-1)
	for i := 0; i < len(tokens)-1; i++ {
		unique[tokens[i]+" "+tokens[i+1]] = struct{}{}
	}
	return float64(len(unique)) / float64(len(tokens)-1)
}

// repetitionScore is the fraction of response sentences whose normalized
// form already appeared earlier in the same response.
func repetitionScore(response string) float64 {
	sentences := splitSentences(response)
	if len(sentences) < 2 {
		return 0
	}

	seen := make(map[string]struct{}, len(sentences))
	repeated := 0
	for _, sentence := range sentences {
		normalized := strings.ToLower(strings.Join(strings.Fields(sentence), " "))
		if _, ok := seen[normalized]; ok {
			repeated++
			continue
		}
		seen[normalized] = struct{}{}
	}
	return float64(repeated) / float64(len(sentences))
}

// contextUtilization is the fraction of distinct context words (longer
// than three characters) that the response reuses.
func contextUtilization(response string, contextChunks []models.Chunk) float64 {
	if len(contextChunks) == 0 {
		return 0
	}

	contextSet := make(map[string]struct{})
	for _, chunk := range contextChunks {
		for _, word := range contentWords(tokenize(chunk.Text), minContextWordLen) {
			contextSet[word] = struct{}{}
		}
	}
	if len(contextSet) == 0 {
		return 0
	}

	responseSet := make(map[string]struct{})
	for _, token := range tokenize(response) {
		responseSet[trimPunct(token)] = struct{}{}
	}

	used := 0
	for word := range contextSet {
		if _, ok := responseSet[word]; ok {
			used++
		}
	}
	return float64(used) / float64(len(contextSet))
}

// concatContext lower-cases and joins all context chunk texts for
// substring matching.
func concatContext(contextChunks []models.Chunk) string {
	var sb strings.Builder
	for _, chunk := range contextChunks {
		sb.WriteString(strings.ToLower(chunk.Text))
		sb.WriteByte(' ')
	}
	return sb.String()
}

// contentWordMatchRate is the fraction of a sentence's content words
// that appear as substrings of the context text.
func contentWordMatchRate(sentence, contextText string) float64 {
	words := contentWords(tokenize(sentence), minContentWordLen)
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, word := range words {
		if strings.Contains(contextText, word) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

// groundableSentences filters response sentences long enough to judge.
func groundableSentences(response string) []string {
	var kept []string
	for _, sentence := range splitSentences(response) {
		if len(sentence) > minGroundableSentenceLen {
			kept = append(kept, sentence)
		}
	}
	return kept
}

// answerGrounding is the fraction of substantial response sentences whose
// content words mostly trace back to the context.
func answerGrounding(response string, contextChunks []models.Chunk) float64 {
	if len(contextChunks) == 0 {
		return 0
	}
	sentences := groundableSentences(response)
	if len(sentences) == 0 {
		return 0
	}

	contextText := concatContext(contextChunks)
	grounded := 0
	for _, sentence := range sentences {
		if contentWordMatchRate(sentence, contextText) > groundedContentWordRate {
			grounded++
		}
	}
	return float64(grounded) / float64(len(sentences))
}

// hallucinationScore is the fraction of substantial response sentences
// with almost no content-word support in the context. With no context at
// all every claim is unverifiable, so the score is maximal.
func hallucinationScore(response string, contextChunks []models.Chunk) float64 {
	if len(contextChunks) == 0 {
		return 1
	}
	sentences := groundableSentences(response)
	if len(sentences) == 0 {
		return 0
	}

	contextText := concatContext(contextChunks)
	hallucinated := 0
	for _, sentence := range sentences {
		if contentWordMatchRate(sentence, contextText) < hallucinatedContentWordRate {
			hallucinated++
		}
	}
	return float64(hallucinated) / float64(len(sentences))
}

// citationCoverage compares distinct cited sources against distinct
// sources among the supplied context chunks.
func citationCoverage(sources []models.SourceRef, contextChunks []models.Chunk) float64 {
	if len(contextChunks) == 0 {
		return 0
	}

	contextSources := make(map[string]struct{})
	for _, chunk := range contextChunks {
		contextSources[chunk.Source] = struct{}{}
	}
	if len(contextSources) == 0 {
		return 0
	}

	cited := make(map[string]struct{})
	for _, src := range sources {
		cited[src.Source] = struct{}{}
	}
	return float64(len(cited)) / float64(len(contextSources))
}

// retrievalPrecision is the fraction of supplied context chunks whose
// similarity exceeds 0.5. The threshold is deliberately fixed; the
// record's top/avg similarity fields are informational only.
func retrievalPrecision(sources []models.SourceRef) float64 {
	if len(sources) == 0 {
		return 0
	}
	relevant := 0
	for _, src := range sources {
		if src.Similarity > precisionSimilarityFloor {
			relevant++
		}
	}
	return float64(relevant) / float64(len(sources))
}

// completeness is the fraction of query content words (minus stopwords)
// that surface somewhere in the response.
func completeness(query, response string) float64 {
	var queryWords []string
	for _, word := range contentWords(tokenize(query), minContentWordLen) {
		if _, stop := completenessStopwords[word]; !stop {
			queryWords = append(queryWords, word)
		}
	}
	if len(queryWords) == 0 {
		return 1
	}

	lowerResponse := strings.ToLower(response)
	covered := 0
	for _, word := range queryWords {
		if strings.Contains(lowerResponse, word) {
			covered++
		}
	}
	return float64(covered) / float64(len(queryWords))
}

// sourceDiversity is distinct cited sources over total citations.
func sourceDiversity(sources []models.SourceRef) float64 {
	if len(sources) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		distinct[src.Source] = struct{}{}
	}
	return float64(len(distinct)) / float64(len(sources))
}

// throughput converts token count and wall time into tokens per second.
func throughput(tokensGenerated int, totalTimeMs int64) float64 {
	if totalTimeMs == 0 {
		return 0
	}
	return float64(tokensGenerated) / float64(totalTimeMs) * 1000
}
