package worker

// TaskPayload is the message published per accepted ingestion job.
type TaskPayload struct {
	JobID         string `json:"job_id"`
	URL           string `json:"url"`
	CorrelationID string `json:"correlation_id"`
}
