// Package vector holds the index-facing data model: the DocumentChunk
// class, record payloads, and deterministic record ids.
package vector

import (
	"fmt"

	"github.com/google/uuid"
)

const ClassName = "DocumentChunk"

// Payload is the metadata stored alongside each embedding.
type Payload struct {
	JobID          string
	SourceURL      string
	ChunkIndex     int
	Text           string
	EmbeddingModel string
	Dimension      int
}

// Record is one vector index entry. Upserting the same ID overwrites.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// chunkNamespace scopes the UUIDv5 derivation of chunk ids. Never change
// it: doing so would orphan every previously indexed record.
var chunkNamespace = uuid.MustParse("a33bfcdc-9d11-4a2b-8c5e-52d4f4a8f8a1")

// ChunkID derives the stable id for a chunk from its job id and index, so
// re-ingesting a job overwrites its records instead of duplicating them.
func ChunkID(jobID string, chunkIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", jobID, chunkIndex))).String()
}
