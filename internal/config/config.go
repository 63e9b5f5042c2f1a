package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	LogMode     string `envconfig:"LOG_MODE" default:"dev"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	RedisThreadTTL time.Duration `envconfig:"REDIS_THREAD_TTL" default:"168h"`

	S3Endpoint  string        `envconfig:"S3_ENDPOINT"`
	S3AccessKey string        `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string        `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string        `envconfig:"S3_BUCKET" default:"lessonlens-images"`
	S3Region    string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3URLExpiry time.Duration `envconfig:"S3_URL_EXPIRY" default:"1h"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	ResponsesModel      string `envconfig:"RESPONSES_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ImageModel          string `envconfig:"IMAGE_MODEL" default:"dall-e-3"`

	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`
	JobBatchSize       int           `envconfig:"JOB_BATCH_SIZE" default:"5"`
	JobMaxAttempts     int           `envconfig:"JOB_MAX_ATTEMPTS" default:"5"`
	JobRetryDelay      time.Duration `envconfig:"JOB_RETRY_DELAY" default:"30s"`
	JobStaleAfter      time.Duration `envconfig:"JOB_STALE_AFTER" default:"10m"`

	ConceptMaxTerms           int `envconfig:"CONCEPT_MAX_TERMS" default:"6"`
	ConceptDefinitionMaxChars int `envconfig:"CONCEPT_DEFINITION_MAX_CHARS" default:"200"`

	SuggestionTopK          int     `envconfig:"SUGGESTION_TOP_K" default:"5"`
	SuggestionMinSimilarity float64 `envconfig:"SUGGESTION_MIN_SIMILARITY" default:"0.72"`
	NeighborMinSimilarity   float64 `envconfig:"NEIGHBOR_MIN_SIMILARITY" default:"0.5"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LESSONLENS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Validate checks the numeric settings envconfig cannot bound
func (c *Config) Validate() error {
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency)
	}
	if c.JobMaxAttempts < 1 {
		return fmt.Errorf("JOB_MAX_ATTEMPTS must be at least 1, got %d", c.JobMaxAttempts)
	}
	if c.SuggestionTopK < 1 || c.SuggestionTopK > 20 {
		return fmt.Errorf("SUGGESTION_TOP_K must be within [1,20], got %d", c.SuggestionTopK)
	}
	for name, v := range map[string]float64{
		"SUGGESTION_MIN_SIMILARITY": c.SuggestionMinSimilarity,
		"NEIGHBOR_MIN_SIMILARITY":   c.NeighborMinSimilarity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}
