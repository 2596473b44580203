// Package app wires features, adapters and middleware into a runnable
// service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"webrag/features/health"
	"webrag/features/job"
	"webrag/features/query"
	"webrag/internal/config"
	"webrag/internal/ingest"
	"webrag/internal/middleware"
	"webrag/internal/retrieval"
	"webrag/internal/retry"
	"webrag/internal/text"
	"webrag/internal/vector"
	"webrag/internal/worker"
)

// VectorStore is everything the service needs from the vector index.
type VectorStore interface {
	UpsertChunks(ctx context.Context, recs []vector.Record) error
	Search(ctx context.Context, vec []float32, topK int, filters map[string]any) ([]retrieval.Candidate, error)
	EnsureSchema(ctx context.Context) error
	Ready(ctx context.Context) bool
	CheckDimension(ctx context.Context, want int) error
}

// Embedder covers both sides of the embedding provider: batched document
// embedding for ingestion and single-query embedding for retrieval.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, question string) ([]float32, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type QueuePinger interface {
	Ping() error
}

type App struct {
	Handler    http.Handler
	Dispatcher *worker.Dispatcher

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	embedder Embedder,
	generator retrieval.Generator,
	rerankerClient retrieval.Reranker,
	taskPub TaskPublisher,
	queuePing QueuePinger,
) (*App, error) {
	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub)
	jobHandler := job.NewHandler(jobService)

	// Ingestion pipeline
	fetcher := ingest.NewFetcher(time.Duration(cfg.FetchTimeoutSeconds) * time.Second)
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxRetryAttempts
	orchestrator := ingest.NewOrchestrator(fetcher, jobRepo, embedder, vecStore, ingest.OrchestratorOptions{
		ChunkOptions: text.Options{
			MaxTokens:     cfg.MaxChunkTokens,
			OverlapTokens: cfg.OverlapTokens,
			Counter:       text.EstimateTokens,
		},
		EmbedBatchSize: cfg.EmbedBatchSize,
		Dimension:      cfg.EmbeddingDims,
		EmbeddingModel: cfg.EmbeddingModel,
		Retry:          retryCfg,
	})
	dispatcher := worker.NewDispatcher(jobRepo, orchestrator, uint16(cfg.MaxDeliveryAttempts))

	// Feature: Query
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, vecStore, rerankerClient, generator, retrieval.Options{
		DefaultTopK:     cfg.DefaultTopK,
		MaxTopK:         cfg.MaxTopK,
		EmbeddingModel:  cfg.EmbeddingModel,
		Dimension:       cfg.EmbeddingDims,
		GenerationModel: cfg.GenerationModel,
		MaxContextChars: cfg.MaxContextChars,
	}, queryLogger)
	queryHandler := query.NewHandler(retrievalService, cfg.MaxTopK)

	// Feature: Health
	healthHandler := health.NewHandler(db, vecStore, queuePing)

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("POST /ingest-url", middleware.CorrelationID(enableCORS(jobHandler.Ingest)))
	mux.Handle("GET /status/{job_id}", middleware.CorrelationID(enableCORS(jobHandler.Status)))
	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.ListFailed)))
	mux.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Query)))
	mux.Handle("GET /health", middleware.CorrelationID(enableCORS(healthHandler.Check)))

	return &App{
		Handler:    mux,
		Dispatcher: dispatcher,
		port:       cfg.ServerPort,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
