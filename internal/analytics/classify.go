package analytics

import (
	"regexp"
	"strings"
)

// Query type labels.
const (
	QueryTypeQuestion   = "question"
	QueryTypeSummary    = "summary"
	QueryTypeComparison = "comparison"
	QueryTypeGeneration = "generation"
	QueryTypeOther      = "other"
)

// classifierRule pairs a pattern with its label. Rules are evaluated in
// order and the first match wins: the categories overlap by nature
// ("compare and summarize"), they are only exclusive by this evaluation
// order.
type classifierRule struct {
	pattern *regexp.Regexp
	label   string
}

var classifierRules = []classifierRule{
	{regexp.MustCompile(`\b(what|when|where|who|whom|whose|why|how|which)\b`), QueryTypeQuestion},
	{regexp.MustCompile(`\b(summar\w*|overview|recap|tldr|key points|main points)\b`), QueryTypeSummary},
	{regexp.MustCompile(`\b(compar\w*|versus|vs|differ\w*|contrast\w*|similarit\w*)\b`), QueryTypeComparison},
	{regexp.MustCompile(`\b(write|generate|create|compose|draft|produce)\b`), QueryTypeGeneration},
}

// ClassifyQuery assigns a single intent label to the query.
func ClassifyQuery(query string) string {
	lowered := strings.ToLower(query)
	for _, rule := range classifierRules {
		if rule.pattern.MatchString(lowered) {
			return rule.label
		}
	}
	return QueryTypeOther
}

// QueryComplexity is a composite score capped at 10: word count scaled
// down, clause count from comma/semicolon splits, plus one for an
// explicit question mark.
func QueryComplexity(query string) float64 {
	words := len(strings.Fields(query))

	clauses := 0
	for _, clause := range strings.FieldsFunc(query, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		if strings.TrimSpace(clause) != "" {
			clauses++
		}
	}

	score := float64(words)/5 + float64(clauses)
	if strings.Contains(query, "?") {
		score++
	}
	if score > 10 {
		score = 10
	}
	return score
}
