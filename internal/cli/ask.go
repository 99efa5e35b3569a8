package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/doclens/doclens/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	askDocs []string
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask a single question about a set of documents",
	Long: `Ask a question about the given documents and get an LLM answer
grounded in the most relevant passages.

The documents are chunked, embedded and indexed for this invocation only;
nothing is persisted. Cited sources and quality metrics are printed with
the answer.

Examples:
  doclens ask "What is the refund policy?" --docs policy.pdf
  doclens ask "Summarize the architecture" --docs design.md --docs adr/001.md
  doclens ask "How does auth work?" --docs auth.txt --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVarP(&askDocs, "docs", "d", nil, "document files to index (repeatable)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer, sources and metrics as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	sess, err := getSession()
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	if err := ingestDocuments(ctx, sess, askDocs); err != nil {
		return err
	}

	answer, err := sess.Ask(ctx, query)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Println(answer.Response)

	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range answer.Sources {
			fmt.Printf("  - %s (similarity %.3f)\n", src.Source, src.Similarity)
		}
	}

	if verbose {
		printMetrics(answer)
	}

	return nil
}

// ingestDocuments indexes the given files, with a progress bar when
// attached to a terminal.
func ingestDocuments(ctx context.Context, sess *session.Session, docs []string) error {
	if len(docs) == 0 {
		return nil
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		if _, err := RunIngestProgress(ctx, sess, docs); err != nil {
			return fmt.Errorf("ingest documents: %w", err)
		}
		return nil
	}

	result, err := sess.IngestFiles(ctx, docs, nil)
	if err != nil {
		return fmt.Errorf("ingest documents: %w", err)
	}
	fmt.Printf("Indexed %d documents (%d chunks)\n", result.DocumentsIndexed, result.ChunksIndexed)
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", e)
	}
	return nil
}

// printMetrics dumps the per-query quality metrics for one answer.
func printMetrics(answer *session.Answer) {
	m := answer.Metrics
	fmt.Println("\nMetrics:")
	fmt.Printf("  Query type:          %s (complexity %.1f)\n", m.QueryType, m.QueryComplexity)
	fmt.Printf("  Answer grounding:    %.3f\n", m.AnswerGrounding)
	fmt.Printf("  Hallucination score: %.3f\n", m.HallucinationScore)
	fmt.Printf("  Citation coverage:   %.3f\n", m.CitationCoverage)
	fmt.Printf("  Retrieval precision: %.3f\n", m.RetrievalPrecision)
	fmt.Printf("  Completeness:        %.3f\n", m.Completeness)
	fmt.Printf("  Context utilization: %.3f\n", m.ContextUtilization)
	fmt.Printf("  Top similarity:      %.3f\n", m.TopSimilarity)
	fmt.Printf("  Generation time:     %d ms (first token %d ms)\n", m.TotalTimeMs, m.TimeToFirstTokenMs)
	fmt.Printf("  Tokens/second:       %.1f\n", m.TokensPerSecond)
}
