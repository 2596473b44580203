package vector_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"webrag/internal/vector"
)

func TestChunkID(t *testing.T) {
	t.Run("deterministic for same job and index", func(t *testing.T) {
		a := vector.ChunkID("job-1", 0)
		b := vector.ChunkID("job-1", 0)
		assert.Equal(t, a, b)
	})

	t.Run("distinct across indexes and jobs", func(t *testing.T) {
		ids := map[string]bool{}
		for _, jobID := range []string{"job-1", "job-2"} {
			for i := 0; i < 10; i++ {
				ids[vector.ChunkID(jobID, i)] = true
			}
		}
		assert.Len(t, ids, 20)
	})

	t.Run("produces valid uuids", func(t *testing.T) {
		id := vector.ChunkID("550e8400-e29b-41d4-a716-446655440000", 42)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})
}
