package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"webrag/internal/adapter/gemini"
	"webrag/internal/adapter/reranker"
	"webrag/internal/app"
	"webrag/internal/config"
	"webrag/internal/logger"
	"webrag/internal/retrieval"
	"webrag/internal/worker"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GenerationModel)
	if err != nil {
		slog.Error("failed to create generator", "error", err)
		os.Exit(1)
	}
	defer generator.Close()

	var rerankerClient retrieval.Reranker
	if cfg.RerankProvider != "" {
		rerankerClient = reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey)
	}

	a, err := app.New(cfg, deps.DB, deps.VectorStore, embedder, generator, rerankerClient,
		deps.NSQProducer, deps.NSQProducer)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	consumer, err := worker.Start(cfg, a.Dispatcher)
	if err != nil {
		slog.Error("failed to start ingestion consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Stop()
	defer deps.NSQProducer.Stop()

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
