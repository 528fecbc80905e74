package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Indexing IndexingConfig
	RAG      RAGConfig
	Grading  GradingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string // empty uses the embedded migrations
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Queue modes.
const (
	QueueModeQueue  = "queue"
	QueueModeInline = "inline"
)

// SchemaEmbeddingDims is the vector width of document_chunks.embedding in
// migrations/001_init.sql. Changing models to another width needs a migration.
const SchemaEmbeddingDims = 1536

type QueueConfig struct {
	Mode        string // "queue" or "inline"
	Concurrency int
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type IndexingConfig struct {
	MaxTokens     int
	OverlapTokens int
	// Encoding names a tiktoken encoding; empty uses the embedding model's.
	Encoding          string
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingDims     int
	EmbeddingCacheTTL time.Duration
	EmbedConcurrency  int
	OCRLanguage       string
	// StaleAfter is how long an indexing run holds a document before it
	// may be taken over.
	StaleAfter time.Duration
}

type RAGConfig struct {
	TopK           int
	ScoreThreshold float64
	Model          string
}

type GradingConfig struct {
	Model string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	concurrency, err := getEnvInt("QUEUE_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_CONCURRENCY: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	maxTokens, err := getEnvInt("CHUNK_MAX_TOKENS", 4096)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_MAX_TOKENS: %w", err)
	}

	overlapTokens, err := getEnvInt("CHUNK_OVERLAP_TOKENS", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_OVERLAP_TOKENS: %w", err)
	}

	dims, err := getEnvInt("EMBEDDING_DIMENSIONS", SchemaEmbeddingDims)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_DIMENSIONS: %w", err)
	}

	embedConcurrency, err := getEnvInt("EMBED_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBED_CONCURRENCY: %w", err)
	}

	cacheTTL, err := getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_CACHE_TTL: %w", err)
	}

	staleAfter, err := getEnvDuration("INDEXING_STALE_AFTER", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid INDEXING_STALE_AFTER: %w", err)
	}

	topK, err := getEnvInt("RAG_TOP_K", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RAG_TOP_K: %w", err)
	}

	threshold, err := getEnvFloat("RAG_SCORE_THRESHOLD", 0.5)
	if err != nil {
		return nil, fmt.Errorf("invalid RAG_SCORE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			CORSOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Queue: QueueConfig{
			Mode:        strings.ToLower(getEnv("QUEUE_MODE", QueueModeQueue)),
			Concurrency: concurrency,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "materials"),
		},
		Indexing: IndexingConfig{
			MaxTokens:         maxTokens,
			OverlapTokens:     overlapTokens,
			Encoding:          getEnv("TOKENIZER_ENCODING", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDims:     dims,
			EmbeddingCacheTTL: cacheTTL,
			EmbedConcurrency:  embedConcurrency,
			OCRLanguage:       getEnv("OCR_LANGUAGE", "eng"),
			StaleAfter:        staleAfter,
		},
		RAG: RAGConfig{
			TopK:           topK,
			ScoreThreshold: threshold,
			Model:          getEnv("RAG_MODEL", ""),
		},
		Grading: GradingConfig{
			Model: getEnv("GRADING_MODEL", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Inline reports whether background work runs in the caller instead of the queue.
func (c *Config) Inline() bool {
	return c.Queue.Mode == QueueModeInline
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" && c.LLM.OllamaURL == "" {
		missing = append(missing, "OPENAI_API_KEY|ANTHROPIC_API_KEY|OLLAMA_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Queue.Mode != QueueModeQueue && c.Queue.Mode != QueueModeInline {
		return fmt.Errorf("invalid QUEUE_MODE %q", c.Queue.Mode)
	}
	if c.Indexing.OverlapTokens >= c.Indexing.MaxTokens {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS (%d) must be smaller than CHUNK_MAX_TOKENS (%d)", c.Indexing.OverlapTokens, c.Indexing.MaxTokens)
	}
	if c.Indexing.EmbeddingDims != SchemaEmbeddingDims {
		return fmt.Errorf("EMBEDDING_DIMENSIONS (%d) must match the schema vector width (%d)", c.Indexing.EmbeddingDims, SchemaEmbeddingDims)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
