package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webrag/internal/ragerr"
	"webrag/internal/retry"
	"webrag/internal/text"
	"webrag/internal/vector"
)

// Ledger is the slice of job persistence the pipeline needs while a job is
// being processed. Claiming and terminal transitions belong to the worker
// dispatcher, not here.
type Ledger interface {
	SetChunkCount(ctx context.Context, jobID string, count int) error
	RecordProgress(ctx context.Context, jobID string, processed int) error
}

// Embedder turns a batch of chunk texts into vectors, one per input, in
// input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter persists chunk records. Records carry deterministic IDs, so
// writing the same job twice overwrites rather than duplicates.
type VectorWriter interface {
	UpsertChunks(ctx context.Context, recs []vector.Record) error
}

// Orchestrator runs the ingestion pipeline for a single claimed job:
// fetch, sanitize, chunk, embed in batches, upsert, record progress.
type Orchestrator struct {
	fetcher  *Fetcher
	ledger   Ledger
	embedder Embedder
	writer   VectorWriter

	chunkOpts text.Options
	batchSize int
	dimension int
	model     string
	retryCfg  retry.Config
}

type OrchestratorOptions struct {
	ChunkOptions   text.Options
	EmbedBatchSize int
	Dimension      int
	EmbeddingModel string
	Retry          retry.Config
}

func NewOrchestrator(f *Fetcher, l Ledger, e Embedder, w VectorWriter, opts OrchestratorOptions) *Orchestrator {
	if opts.EmbedBatchSize < 1 {
		opts.EmbedBatchSize = 100
	}
	return &Orchestrator{
		fetcher:   f,
		ledger:    l,
		embedder:  e,
		writer:    w,
		chunkOpts: opts.ChunkOptions,
		batchSize: opts.EmbedBatchSize,
		dimension: opts.Dimension,
		model:     opts.EmbeddingModel,
		retryCfg:  opts.Retry,
	}
}

// Result summarizes a completed pipeline run.
type Result struct {
	ChunkCount int
	Elapsed    time.Duration
}

// Run executes the pipeline for one job. Progress is recorded after every
// persisted batch, so processed_chunks only moves forward; a batch whose
// progress write fails stops the run before the next batch starts.
func (o *Orchestrator) Run(ctx context.Context, jobID, url string) (Result, error) {
	start := time.Now()
	log := slog.With("job_id", jobID, "url", url)

	var raw string
	err := retry.Do(ctx, o.retryCfg, func() error {
		var ferr error
		raw, ferr = o.fetcher.Fetch(ctx, url)
		return ferr
	})
	if err != nil {
		return Result{}, err
	}

	content := Sanitize(raw)
	if content == "" {
		return Result{}, &ragerr.ChunkingError{Err: errors.New("page has no extractable text")}
	}

	chunks, err := text.Split(content, o.chunkOpts)
	if err != nil {
		return Result{}, &ragerr.ChunkingError{Err: err}
	}
	if len(chunks) == 0 {
		return Result{}, &ragerr.ChunkingError{Err: errors.New("content produced no chunks")}
	}
	log.InfoContext(ctx, "content chunked", "chunks", len(chunks))

	if err := o.ledger.SetChunkCount(ctx, jobID, len(chunks)); err != nil {
		return Result{}, err
	}

	processed := 0
	for batchStart := 0; batchStart < len(chunks); batchStart += o.batchSize {
		end := min(batchStart+o.batchSize, len(chunks))
		batch := chunks[batchStart:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		var vectors [][]float32
		err := retry.Do(ctx, o.retryCfg, func() error {
			var eerr error
			vectors, eerr = o.embedder.EmbedBatch(ctx, texts)
			return eerr
		})
		if err != nil {
			return Result{}, err
		}
		if len(vectors) != len(batch) {
			return Result{}, &ragerr.EmbeddingError{Err: fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(batch))}
		}
		for _, v := range vectors {
			if len(v) != o.dimension {
				return Result{}, &ragerr.EmbeddingError{
					Err: fmt.Errorf("%w: got %d, want %d", ragerr.ErrDimensionMismatch, len(v), o.dimension),
				}
			}
		}

		recs := make([]vector.Record, len(batch))
		for i, c := range batch {
			recs[i] = vector.Record{
				ID:     vector.ChunkID(jobID, c.Index),
				Vector: vectors[i],
				Payload: vector.Payload{
					JobID:          jobID,
					SourceURL:      url,
					ChunkIndex:     c.Index,
					Text:           c.Content,
					EmbeddingModel: o.model,
					Dimension:      o.dimension,
				},
			}
		}

		err = retry.Do(ctx, o.retryCfg, func() error {
			return o.writer.UpsertChunks(ctx, recs)
		})
		if err != nil {
			return Result{}, err
		}

		processed += len(batch)
		if err := o.ledger.RecordProgress(ctx, jobID, processed); err != nil {
			return Result{}, err
		}
		log.DebugContext(ctx, "batch persisted", "processed", processed, "total", len(chunks))
	}

	return Result{ChunkCount: len(chunks), Elapsed: time.Since(start)}, nil
}
