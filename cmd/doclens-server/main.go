// Package main provides the doclens dashboard and chat server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/server"
	"github.com/doclens/doclens/internal/session"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides config)")
	docs := flag.String("docs", "", "comma-separated documents to index on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	logger, closeLog := config.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer func() {
		if err := closeLog(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()

	slog.Info("starting doclens-server", "addr", cfg.ServerAddr)

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	model, err := llm.NewModel(cfg)
	if err != nil {
		slog.Error("failed to create model", "error", err)
		os.Exit(1)
	}

	sess := session.New(session.OptionsFromConfig(cfg), embedder, model)

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *docs != "" {
		paths := strings.Split(*docs, ",")
		result, err := sess.IngestFiles(ctx, paths, nil)
		if err != nil {
			slog.Error("startup ingestion failed", "error", err)
			os.Exit(1)
		}
		for _, e := range result.Errors {
			slog.Warn("document skipped", "error", e)
		}
	}

	srv := server.New(cfg, sess, logger)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
