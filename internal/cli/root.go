// Package cli provides the command-line interface for doclens.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/session"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and log teardown
	cfg      config.Config
	closeLog func() error

	// Lazy-initialized LLM components
	embedder *llm.Embedder
	model    *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "doclens",
	Short: "Local document question answering with retrieval analytics",
	Long: `Doclens answers questions about your own documents. It chunks and
embeds the files you point it at, retrieves the most relevant passages
for each question, and asks the configured LLM to answer from them.

Every answer is scored in the background: grounding, hallucination risk,
citation coverage, retrieval precision and more, aggregated per session.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, closeFn := config.SetupLogger(cfg)
		slog.SetDefault(logger)
		closeLog = closeFn

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// getSession builds a session with lazy LLM initialization. All commands
// that embed or generate go through here so the providers are only
// dialed when actually needed.
func getSession() (*session.Session, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		model, err = llm.NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}

	return session.New(session.OptionsFromConfig(cfg), embedder, model), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statsCmd)
}
