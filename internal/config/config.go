package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"memento-media"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// OpenAI-compatible endpoints for embeddings and answer generation.
	// EmbeddingBaseURL points at the Jina-family embedding API by default.
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	ChatBaseURL         string `envconfig:"CHAT_BASE_URL"`
	EmbeddingAPIKey     string `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingBaseURL    string `envconfig:"EMBEDDING_BASE_URL" default:"https://api.jina.ai/v1"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"jina-embeddings-v3"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1024"`

	// Jina segmentation and rerank APIs. Keys is a comma-separated pool.
	JinaAPIKeys        []string `envconfig:"JINA_API_KEYS"`
	JinaSegmentBaseURL string   `envconfig:"JINA_SEGMENT_BASE_URL"`
	JinaRerankBaseURL  string   `envconfig:"JINA_RERANK_BASE_URL"`
	JinaRerankModel    string   `envconfig:"JINA_RERANK_MODEL"`

	WebSearchEnabled bool `envconfig:"WEB_SEARCH_ENABLED" default:"false"`

	// Retrieval tuning. Defaults preserve the reference behavior.
	FusionK            int     `envconfig:"FUSION_K" default:"100"`
	SemanticWeight     float64 `envconfig:"SEMANTIC_WEIGHT" default:"0.7"`
	FullTextWeight     float64 `envconfig:"FULLTEXT_WEIGHT" default:"0.3"`
	FusionScoreScale   float64 `envconfig:"FUSION_SCORE_SCALE" default:"100"`
	RelativeThreshold  float64 `envconfig:"RELATIVE_THRESHOLD" default:"0.6"`
	SemanticFloor      float64 `envconfig:"SEMANTIC_FLOOR" default:"0.1"`
	RerankMemThreshold float64 `envconfig:"RERANK_MEMORY_THRESHOLD" default:"0.5"`
	RerankWebThreshold float64 `envconfig:"RERANK_WEB_THRESHOLD" default:"0.3"`
	RerankTopK         int     `envconfig:"RERANK_TOP_K" default:"10"`
	ContextWindow      int     `envconfig:"CONTEXT_WINDOW" default:"2"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`

	SentryDSN        string  `envconfig:"SENTRY_DSN"`
	SentryEnv        string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`

	// Bootstrap: create an initial API key for this user on startup
	InitUserID string `envconfig:"INIT_USER_ID"`
	InitAPIKey string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MEMENTO", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasChat() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasJina() bool {
	return len(c.JinaAPIKeys) > 0
}

// HasWebSearch reports whether web retrieval should augment queries.
// Web search rides on the Jina key pool, so it also needs HasJina.
func (c *Config) HasWebSearch() bool {
	return c.WebSearchEnabled && c.HasJina()
}
