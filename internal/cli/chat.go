package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/doclens/doclens/internal/analytics"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/session"
	"github.com/spf13/cobra"
)

var chatDocs []string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question answering over a set of documents",
	Long: `Start an interactive chat over the given documents. Answers stream
token by token and conversation history carries across turns.

Commands inside the chat:
  /stats  show aggregated session metrics
  /reset  clear the conversation history
  /quit   exit

Examples:
  doclens chat --docs handbook.pdf
  doclens chat --docs notes.md --docs meeting-minutes.txt`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringSliceVarP(&chatDocs, "docs", "d", nil, "document files to index (repeatable)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sess, err := getSession()
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	if err := ingestDocuments(ctx, sess, chatDocs); err != nil {
		return err
	}

	fmt.Printf("Chatting over %d indexed chunks. Type /quit to exit.\n\n", sess.Store().Size())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			sess.Reset()
			fmt.Println("Session reset.")
			continue
		case "/stats":
			printAggregatedStats(sess.Stats())
			continue
		}

		if err := streamAnswer(ctx, sess, line); err != nil {
			if errors.Is(err, llm.ErrFatalAPI) {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

// streamAnswer asks one question and prints tokens as they arrive.
func streamAnswer(ctx context.Context, sess *session.Session, query string) error {
	answer, err := sess.AskStream(ctx, query, func(token string) error {
		fmt.Print(token)
		return nil
	})
	if err != nil {
		fmt.Println()
		return err
	}

	fmt.Println()
	if len(answer.Sources) > 0 {
		var names []string
		for _, src := range answer.Sources {
			names = append(names, src.Source)
		}
		fmt.Printf("[sources: %s]\n", strings.Join(names, ", "))
	}
	fmt.Println()
	return nil
}

// printAggregatedStats renders the session rollup for the terminal.
func printAggregatedStats(stats analytics.AggregatedStats) {
	fmt.Printf("\nQueries tracked: %d\n", stats.TotalQueries)
	if len(stats.QueryTypes) > 0 {
		fmt.Print("Query types:    ")
		var parts []string
		for qt, n := range stats.QueryTypes {
			parts = append(parts, fmt.Sprintf("%s=%d", qt, n))
		}
		fmt.Println(strings.Join(parts, " "))
	}
	fmt.Printf("Answer grounding (avg):    %.3f\n", stats.AvgAnswerGrounding)
	fmt.Printf("Hallucination score (avg): %.3f\n", stats.AvgHallucinationScore)
	fmt.Printf("Citation coverage (avg):   %.3f\n", stats.AvgCitationCoverage)
	fmt.Printf("Retrieval precision (avg): %.3f\n", stats.AvgRetrievalPrecision)
	fmt.Printf("Completeness (avg):        %.3f\n", stats.AvgCompleteness)
	fmt.Printf("Context utilization (avg): %.3f\n", stats.AvgContextUtilization)
	fmt.Printf("Top similarity (avg):      %.3f\n", stats.AvgTopSimilarity)
	fmt.Printf("Generation time:           avg %.0f ms, median %.0f ms, p95 %.0f ms\n",
		stats.AvgGenerationTimeMs, stats.MedianGenerationTimeMs, stats.P95GenerationTimeMs)
	fmt.Printf("Tokens/second (avg):       %.1f\n\n", stats.AvgTokensPerSecond)
}
