package job

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is the durable record of one URL ingestion. The pipeline never
// deletes rows; terminal jobs stay for audit.
type Job struct {
	ID              string         `json:"job_id"`
	URL             string         `json:"url"`
	Status          Status         `json:"status"`
	ChunkCount      int            `json:"chunk_count"`
	ProcessedChunks int            `json:"processed_chunks"`
	ErrorMessage    string         `json:"error,omitempty"`
	ErrorTrace      string         `json:"-"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	RetryCount      int            `json:"retry_count"`

	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	ProcessingTimeSeconds float64    `json:"processing_time_seconds,omitempty"`
}
