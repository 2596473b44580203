package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// The Gemini embedding API caps BatchEmbedContents at 100 texts per call.
const maxEmbedBatchSize = 100

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"webrag"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"webrag"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDims   int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	GenerationModel string `envconfig:"GENERATION_MODEL" default:"gemini-2.5-flash"`

	// RerankProvider enables the optional re-ranking pass ("jina" or
	// "cohere"); empty disables it.
	RerankProvider string `envconfig:"RERANK_PROVIDER"`
	RerankAPIKey   string `envconfig:"RERANK_API_KEY"`

	MaxChunkTokens int `envconfig:"MAX_CHUNK_TOKENS" default:"800"`
	OverlapTokens  int `envconfig:"OVERLAP_TOKENS" default:"100"`
	EmbedBatchSize int `envconfig:"EMBED_BATCH_SIZE" default:"100"`

	FetchTimeoutSeconds int `envconfig:"FETCH_TIMEOUT_SECONDS" default:"10"`
	MaxRetryAttempts    int `envconfig:"MAX_RETRY_ATTEMPTS" default:"3"`
	MaxDeliveryAttempts int `envconfig:"MAX_DELIVERY_ATTEMPTS" default:"5"`
	WorkerConcurrency   int `envconfig:"WORKER_CONCURRENCY" default:"4"`

	DefaultTopK     int `envconfig:"DEFAULT_TOP_K" default:"5"`
	MaxTopK         int `envconfig:"MAX_TOP_K" default:"50"`
	MaxContextChars int `envconfig:"MAX_CONTEXT_CHARS" default:"12000"`

	ServerPort    int    `envconfig:"SERVER_PORT" default:"8080"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell; .env files are best-effort.
	_ = godotenv.Load(".env")
	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbeddingDims <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDims)
	}
	if c.OverlapTokens >= c.MaxChunkTokens {
		return fmt.Errorf("OVERLAP_TOKENS (%d) must be smaller than MAX_CHUNK_TOKENS (%d)",
			c.OverlapTokens, c.MaxChunkTokens)
	}
	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > maxEmbedBatchSize {
		return fmt.Errorf("EMBED_BATCH_SIZE must be within 1..%d, got %d", maxEmbedBatchSize, c.EmbedBatchSize)
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > c.MaxTopK {
		return fmt.Errorf("DEFAULT_TOP_K (%d) must be within 1..%d", c.DefaultTopK, c.MaxTopK)
	}
	return nil
}
