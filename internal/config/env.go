package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Fallback policies for query-time embedding failures.
const (
	EmbedFallbackStrict   = "strict"   // surface the error, fail the turn step
	EmbedFallbackDegraded = "degraded" // proceed with a zero vector, tagged degraded
)

// Key-fact accumulation policies.
const (
	KeyFactsPerTurn    = "per-turn"   // facts reflect only the latest turn
	KeyFactsCumulative = "cumulative" // merge with existing facts, dedup, newest first
)

type Config struct {
	DatabaseURL string

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	UploadDir    string

	Port string

	ChunkSize    int
	ChunkOverlap int
	TopK         int
	HistoryLimit int
	IngestPause  time.Duration

	QueryEmbedFallback string
	KeyFactsPolicy     string
}

// LoadConfig reads the environment (plus an optional .env file) once at
// startup and returns the validated configuration. Components receive this
// by injection and never read the environment themselves.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:   getEnvInt("EMBED_DIM", 384),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-flash"),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "insidelm-docs"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),

		Port: getEnv("PORT", "8080"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),
		TopK:         getEnvInt("RETRIEVAL_TOP_K", 5),
		HistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 10),
		IngestPause:  getEnvDuration("INGEST_PAUSE", time.Second),

		QueryEmbedFallback: getEnv("QUERY_EMBED_FALLBACK", EmbedFallbackStrict),
		KeyFactsPolicy:     getEnv("KEY_FACTS_POLICY", KeyFactsPerTurn),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if cfg.QueryEmbedFallback != EmbedFallbackStrict && cfg.QueryEmbedFallback != EmbedFallbackDegraded {
		return nil, fmt.Errorf("QUERY_EMBED_FALLBACK must be %q or %q, got %q",
			EmbedFallbackStrict, EmbedFallbackDegraded, cfg.QueryEmbedFallback)
	}
	if cfg.KeyFactsPolicy != KeyFactsPerTurn && cfg.KeyFactsPolicy != KeyFactsCumulative {
		return nil, fmt.Errorf("KEY_FACTS_POLICY must be %q or %q, got %q",
			KeyFactsPerTurn, KeyFactsCumulative, cfg.KeyFactsPolicy)
	}

	return cfg, nil
}

// ObjectStorageEnabled reports whether uploads should go to S3 instead of
// the local upload directory.
func (c *Config) ObjectStorageEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
