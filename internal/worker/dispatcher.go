// Package worker consumes ingestion task messages from NSQ and drives the
// pipeline for each claimed job. Delivery is at-least-once; the exclusive
// claim on the job row makes duplicate deliveries harmless.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/nsqio/go-nsq"

	"webrag/internal/config"
	"webrag/internal/ingest"
	"webrag/internal/middleware"
	"webrag/internal/ragerr"
)

// Ledger covers the job transitions the dispatcher owns: claiming, terminal
// states, and releasing a claim back for redelivery.
type Ledger interface {
	Begin(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, chunkCount int, elapsed time.Duration) error
	Fail(ctx context.Context, id string, message, trace string) error
}

type Orchestrator interface {
	Run(ctx context.Context, jobID, url string) (ingest.Result, error)
}

type Dispatcher struct {
	ledger      Ledger
	orch        Orchestrator
	maxAttempts uint16
}

func NewDispatcher(l Ledger, o Orchestrator, maxAttempts uint16) *Dispatcher {
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	return &Dispatcher{ledger: l, orch: o, maxAttempts: maxAttempts}
}

// HandleMessage implements nsq.Handler. Returning nil finishes the message;
// returning an error requeues it. Malformed payloads are dropped, never
// requeued.
func (d *Dispatcher) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload TaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.JobID == "" || payload.URL == "" {
		slog.Error("poison pill: incomplete payload", "job_id", payload.JobID)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	log := slog.With("job_id", payload.JobID, "url", payload.URL)

	if err := d.ledger.Begin(ctx, payload.JobID); err != nil {
		switch {
		case errors.Is(err, ragerr.ErrAlreadyProcessing):
			log.InfoContext(ctx, "job already claimed, dropping duplicate delivery")
			return nil
		case errors.Is(err, ragerr.ErrJobNotFound):
			log.WarnContext(ctx, "job row missing, dropping message")
			return nil
		default:
			return err
		}
	}

	res, runErr := d.orch.Run(ctx, payload.JobID, payload.URL)
	if runErr == nil {
		if err := d.ledger.Complete(ctx, payload.JobID, res.ChunkCount, res.Elapsed); err != nil {
			log.ErrorContext(ctx, "failed to mark job completed", "error", err)
		} else {
			log.InfoContext(ctx, "job completed", "chunks", res.ChunkCount, "elapsed", res.Elapsed)
		}
		return nil
	}

	if ragerr.IsTransient(runErr) && m.Attempts < d.maxAttempts {
		log.WarnContext(ctx, "transient failure, releasing job for redelivery",
			"error", runErr, "attempt", m.Attempts)
		if err := d.ledger.Release(ctx, payload.JobID); err != nil {
			log.ErrorContext(ctx, "failed to release job", "error", err)
		}
		return runErr
	}

	log.ErrorContext(ctx, "job failed", "error", runErr, "attempt", m.Attempts)
	if err := d.ledger.Fail(ctx, payload.JobID, runErr.Error(), string(debug.Stack())); err != nil {
		log.ErrorContext(ctx, "failed to mark job failed", "error", err)
	}
	return nil
}

// Start builds the NSQ consumer and runs the dispatcher across a pool of
// concurrent handlers.
func Start(cfg *config.Config, d *Dispatcher) (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxAttempts = uint16(cfg.MaxDeliveryAttempts)

	consumer, err := nsq.NewConsumer(config.TopicIngest, config.ChannelWorkers, nsqCfg)
	if err != nil {
		return nil, err
	}

	consumer.AddConcurrentHandlers(nsq.HandlerFunc(d.HandleMessage), cfg.WorkerConcurrency)

	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		return nil, err
	}
	slog.Info("ingestion consumer connected",
		"topic", config.TopicIngest, "channel", config.ChannelWorkers, "concurrency", cfg.WorkerConcurrency)
	return consumer, nil
}
