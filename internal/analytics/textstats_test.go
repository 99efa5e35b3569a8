package analytics

import (
	"math"
	"testing"

	"github.com/doclens/doclens/internal/models"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestDistinct(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		wantDistinct1 float64
		wantDistinct2 float64
	}{
		{"empty", "", 0, 0},
		{"single token", "hello", 1, 0},
		{"all unique", "the quick brown fox", 1, 1},
		{"repeated unigrams", "the sky the sky the sky", 2.0 / 6.0, 1.0 / 5.0},
		{"case folded", "The THE the", 1.0 / 3.0, 1.0 / 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := tokenize(tt.response)
			if got := distinct1(tokens); !almostEqual(got, tt.wantDistinct1) {
				t.Errorf("distinct1() = %v, want %v", got, tt.wantDistinct1)
			}
			if got := distinct2(tokens); !almostEqual(got, tt.wantDistinct2) {
				t.Errorf("distinct2() = %v, want %v", got, tt.wantDistinct2)
			}
		})
	}
}

func TestRepetitionScore(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     float64
	}{
		{"empty", "", 0},
		{"single sentence", "The sky is blue.", 0},
		{"half repeated", "The sky is blue. The sky is blue.", 0.5},
		{"case and spacing normalized", "The sky is blue. the   SKY is blue!", 0.5},
		{"no repeats", "First point. Second point. Third point.", 0},
		{"all same", "Same. Same. Same. Same.", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repetitionScore(tt.response); !almostEqual(got, tt.want) {
				t.Errorf("repetitionScore(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestContextUtilization(t *testing.T) {
	chunks := []models.Chunk{{Text: "alpha beta gamma delta", Source: "doc"}}

	tests := []struct {
		name     string
		response string
		chunks   []models.Chunk
		want     float64
	}{
		{"no context", "alpha beta", nil, 0},
		{"half used", "alpha gamma but nothing else", chunks, 0.5},
		{"none used", "completely unrelated answer", chunks, 0},
		{"all used", "alpha beta gamma delta", chunks, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contextUtilization(tt.response, tt.chunks); !almostEqual(got, tt.want) {
				t.Errorf("contextUtilization() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroundingAndHallucination(t *testing.T) {
	chunks := []models.Chunk{{
		Text:   "The transformer architecture uses attention mechanisms throughout the network.",
		Source: "paper.pdf",
	}}

	t.Run("grounded sentence", func(t *testing.T) {
		response := "The transformer architecture relies on attention."
		if got := answerGrounding(response, chunks); !almostEqual(got, 1) {
			t.Errorf("answerGrounding() = %v, want 1", got)
		}
		if got := hallucinationScore(response, chunks); !almostEqual(got, 0) {
			t.Errorf("hallucinationScore() = %v, want 0", got)
		}
	})

	t.Run("ungrounded sentence", func(t *testing.T) {
		response := "Quantum blockchain scaling solves pancakes everywhere today."
		if got := answerGrounding(response, chunks); !almostEqual(got, 0) {
			t.Errorf("answerGrounding() = %v, want 0", got)
		}
		if got := hallucinationScore(response, chunks); !almostEqual(got, 1) {
			t.Errorf("hallucinationScore() = %v, want 1", got)
		}
	})

	t.Run("no context is maximal hallucination", func(t *testing.T) {
		if got := hallucinationScore("Any claim at all, quite long enough.", nil); !almostEqual(got, 1) {
			t.Errorf("hallucinationScore() = %v, want 1", got)
		}
		if got := answerGrounding("Any claim at all, quite long enough.", nil); !almostEqual(got, 0) {
			t.Errorf("answerGrounding() = %v, want 0", got)
		}
	})

	t.Run("short sentences are not judged", func(t *testing.T) {
		if got := hallucinationScore("Yes. No. Maybe so.", chunks); !almostEqual(got, 0) {
			t.Errorf("hallucinationScore() = %v, want 0", got)
		}
	})
}

func TestCitationCoverage(t *testing.T) {
	chunks := []models.Chunk{
		{Text: "x", Source: "a.pdf"},
		{Text: "y", Source: "b.pdf"},
		{Text: "z", Source: "a.pdf"},
	}

	tests := []struct {
		name    string
		sources []models.SourceRef
		chunks  []models.Chunk
		want    float64
	}{
		{"no context", []models.SourceRef{{Source: "a.pdf"}}, nil, 0},
		{"half covered", []models.SourceRef{{Source: "a.pdf"}}, chunks, 0.5},
		{"fully covered", []models.SourceRef{{Source: "a.pdf"}, {Source: "b.pdf"}}, chunks, 1},
		{"duplicate citations count once", []models.SourceRef{{Source: "a.pdf"}, {Source: "a.pdf"}}, chunks, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := citationCoverage(tt.sources, tt.chunks); !almostEqual(got, tt.want) {
				t.Errorf("citationCoverage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetrievalPrecision(t *testing.T) {
	tests := []struct {
		name    string
		sources []models.SourceRef
		want    float64
	}{
		{"no sources", nil, 0},
		{"mixed", []models.SourceRef{{Similarity: 0.9}, {Similarity: 0.4}, {Similarity: 0.6}}, 2.0 / 3.0},
		{"boundary excluded", []models.SourceRef{{Similarity: 0.5}}, 0},
		{"all relevant", []models.SourceRef{{Similarity: 0.8}, {Similarity: 0.7}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retrievalPrecision(tt.sources); !almostEqual(got, tt.want) {
				t.Errorf("retrievalPrecision() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompleteness(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		response string
		want     float64
	}{
		{"no content words", "what is it?", "anything", 1},
		{"stopwords excluded", "what would transformers change?", "transformers change everything", 1},
		{"partial", "explain transformer architecture", "the transformer and its architecture", 2.0 / 3.0},
		{"none covered", "explain quantum entanglement", "no idea", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := completeness(tt.query, tt.response); !almostEqual(got, tt.want) {
				t.Errorf("completeness(%q, %q) = %v, want %v", tt.query, tt.response, got, tt.want)
			}
		})
	}
}

func TestSourceDiversity(t *testing.T) {
	tests := []struct {
		name    string
		sources []models.SourceRef
		want    float64
	}{
		{"no citations", nil, 0},
		{"all same", []models.SourceRef{{Source: "a"}, {Source: "a"}}, 0.5},
		{"all distinct", []models.SourceRef{{Source: "a"}, {Source: "b"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sourceDiversity(tt.sources); !almostEqual(got, tt.want) {
				t.Errorf("sourceDiversity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThroughput(t *testing.T) {
	if got := throughput(100, 2000); !almostEqual(got, 50) {
		t.Errorf("throughput(100, 2000) = %v, want 50", got)
	}
	if got := throughput(100, 0); !almostEqual(got, 0) {
		t.Errorf("throughput with zero time = %v, want 0", got)
	}
}
