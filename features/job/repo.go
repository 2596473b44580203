package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"webrag/internal/ragerr"
)

// Repository owns the ingestion_jobs table. All status transitions go
// through it; nothing else writes the row.
type Repository interface {
	Create(ctx context.Context, url string, metadata map[string]any) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	ListByStatus(ctx context.Context, status Status) ([]Job, error)

	// Begin atomically claims a pending job for processing. It returns
	// ragerr.ErrAlreadyProcessing when the job exists but is not pending,
	// so concurrent redeliveries lose the race without side effects.
	Begin(ctx context.Context, id string) error

	// Release puts a processing job back to pending ahead of a queue
	// redelivery, bumping retry_count and resetting processed_chunks so
	// the retry can restart from chunk 0. Internal to the worker loop.
	Release(ctx context.Context, id string) error

	// SetChunkCount records the expected chunk total once chunking succeeds.
	SetChunkCount(ctx context.Context, id string, count int) error

	// RecordProgress persists the cumulative processed-chunk count. It must
	// be non-decreasing; a smaller value is ragerr.ErrInvariantViolation.
	RecordProgress(ctx context.Context, id string, processed int) error

	Complete(ctx context.Context, id string, chunkCount int, elapsed time.Duration) error
	Fail(ctx context.Context, id string, message, trace string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const jobColumns = `id, url, status, chunk_count, processed_chunks,
	COALESCE(error_message, ''), COALESCE(error_trace, ''), metadata, retry_count,
	created_at, updated_at, started_at, completed_at, COALESCE(processing_time_seconds, 0)`

func (r *PostgresRepo) Create(ctx context.Context, url string, metadata map[string]any) (*Job, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata not serializable: %v", ragerr.ErrValidation, err)
	}

	j := &Job{URL: url, Status: StatusPending, Metadata: metadata}
	query := `INSERT INTO ingestion_jobs (url, metadata) VALUES ($1, $2) RETURNING id, created_at, updated_at`
	if err := r.db.QueryRowContext(ctx, query, url, meta).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE id = $1`
	j, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ragerr.ErrJobNotFound, id)
	}
	return j, err
}

func (r *PostgresRepo) ListByStatus(ctx context.Context, status Status) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE status = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Begin(ctx context.Context, id string) error {
	query := `UPDATE ingestion_jobs
		SET status = 'processing', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	return r.transition(ctx, query, id, ragerr.ErrAlreadyProcessing)
}

func (r *PostgresRepo) Release(ctx context.Context, id string) error {
	query := `UPDATE ingestion_jobs
		SET status = 'pending', processed_chunks = 0, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	return r.transition(ctx, query, id, ragerr.ErrInvariantViolation)
}

func (r *PostgresRepo) SetChunkCount(ctx context.Context, id string, count int) error {
	query := `UPDATE ingestion_jobs SET chunk_count = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	return r.transition(ctx, query, id, count, ragerr.ErrInvariantViolation)
}

func (r *PostgresRepo) RecordProgress(ctx context.Context, id string, processed int) error {
	query := `UPDATE ingestion_jobs SET processed_chunks = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND processed_chunks <= $2`
	return r.transition(ctx, query, id, processed, ragerr.ErrInvariantViolation)
}

func (r *PostgresRepo) Complete(ctx context.Context, id string, chunkCount int, elapsed time.Duration) error {
	query := `UPDATE ingestion_jobs
		SET status = 'completed', chunk_count = $2, processed_chunks = $2,
			completed_at = NOW(), processing_time_seconds = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	return r.transition(ctx, query, id, chunkCount, elapsed.Seconds(), ragerr.ErrInvariantViolation)
}

func (r *PostgresRepo) Fail(ctx context.Context, id string, message, trace string) error {
	query := `UPDATE ingestion_jobs
		SET status = 'failed', error_message = $2, error_trace = $3,
			completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	return r.transition(ctx, query, id, message, trace, ragerr.ErrInvariantViolation)
}

// transition runs a guarded UPDATE whose WHERE clause encodes the allowed
// source state. Zero rows means either the job is missing or the guard
// failed; conflictErr distinguishes the latter.
func (r *PostgresRepo) transition(ctx context.Context, query, id string, rest ...any) error {
	conflictErr, ok := rest[len(rest)-1].(error)
	if !ok {
		return fmt.Errorf("%w: transition called without conflict error", ragerr.ErrInvariantViolation)
	}
	args := append([]any{id}, rest[:len(rest)-1]...)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status Status
	err = r.db.QueryRowContext(ctx, `SELECT status FROM ingestion_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ragerr.ErrJobNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", conflictErr, id, status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	var meta []byte
	err := row.Scan(&j.ID, &j.URL, &j.Status, &j.ChunkCount, &j.ProcessedChunks,
		&j.ErrorMessage, &j.ErrorTrace, &meta, &j.RetryCount,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt, &j.ProcessingTimeSeconds)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for job %s: %w", j.ID, err)
		}
	}
	return j, nil
}
