package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webrag/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-embedding-001", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDims)
	assert.Equal(t, "gemini-2.5-flash", cfg.GenerationModel)
	assert.Equal(t, 800, cfg.MaxChunkTokens)
	assert.Equal(t, 100, cfg.OverlapTokens)
	assert.Equal(t, 5, cfg.DefaultTopK)
	assert.Equal(t, 50, cfg.MaxTopK)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAX_CHUNK_TOKENS", "400")
	t.Setenv("WORKER_CONCURRENCY", "8")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.MaxChunkTokens)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("overlap must be below chunk budget", func(t *testing.T) {
		cfg := base()
		cfg.OverlapTokens = cfg.MaxChunkTokens
		assert.Error(t, cfg.Validate())
	})

	t.Run("dimensions must be positive", func(t *testing.T) {
		cfg := base()
		cfg.EmbeddingDims = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("batch size must be at least one", func(t *testing.T) {
		cfg := base()
		cfg.EmbedBatchSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("batch size capped at the provider limit", func(t *testing.T) {
		cfg := base()
		cfg.EmbedBatchSize = 500
		assert.Error(t, cfg.Validate())

		cfg.EmbedBatchSize = 100
		assert.NoError(t, cfg.Validate())
	})

	t.Run("default top_k bounded by max", func(t *testing.T) {
		cfg := base()
		cfg.DefaultTopK = cfg.MaxTopK + 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing db name", func(t *testing.T) {
		cfg := base()
		cfg.DBName = ""
		assert.ErrorIs(t, cfg.Validate(), config.ErrMissingRequired)
	})
}
