package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"webrag/internal/config"
	"webrag/internal/middleware"
	"webrag/internal/ragerr"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  TaskPublisher
}

func NewService(repo Repository, pub TaskPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

// CreateAndEnqueue validates the URL, persists a pending job, and publishes
// the ingestion task. If the publish fails the job stays pending so an
// operator can re-enqueue it; the caller sees the error either way.
func (s *Service) CreateAndEnqueue(ctx context.Context, rawURL string, metadata map[string]any) (*Job, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	j, err := s.repo.Create(ctx, rawURL, metadata)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"job_id":         j.ID,
		"url":            j.URL,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return nil, err
	}

	if err := s.pub.Publish(config.TopicIngest, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task", "job_id", j.ID, "error", err)
		return nil, fmt.Errorf("enqueue job %s: %w", j.ID, err)
	}

	slog.InfoContext(ctx, "ingestion job enqueued", "job_id", j.ID, "url", j.URL)
	return j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

// ListFailed returns terminally failed jobs, newest first, for operator
// triage and manual re-ingestion.
func (s *Service) ListFailed(ctx context.Context) ([]Job, error) {
	return s.repo.ListByStatus(ctx, StatusFailed)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", ragerr.ErrValidation)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: malformed url: %v", ragerr.ErrValidation, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s)", ragerr.ErrValidation)
	}
	return nil
}
