package config

const (
	// TopicIngest is the NSQ topic carrying URL ingestion tasks.
	TopicIngest = "ingest.task"

	// ChannelWorkers is the consumer channel shared by the worker pool, so
	// each task is delivered to exactly one worker at a time.
	ChannelWorkers = "workers"
)
