package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	embedding "github.com/davidbz/hearth/internal/embedding/openai"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider/openai"
	"github.com/davidbz/hearth/internal/retention"
	"github.com/davidbz/hearth/internal/routing"
	"github.com/davidbz/hearth/internal/storage/pebble"
	"github.com/davidbz/hearth/internal/storage/redis"
	"github.com/davidbz/hearth/internal/tool"
)

// Memory backends.
const (
	BackendRedis  = "redis"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Config represents the service configuration.
type Config struct {
	Log       observability.LogConfig
	Server    ServerConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Chat      ChatConfig
	Routing   routing.Config
	Memory    MemoryConfig
	Retention retention.Config
	Redis     redis.Config
	Pebble    pebble.Config
	Search    redis.SearchConfig
	Retrieval RetrievalConfig
	OpenAI    openai.Config
	Tools     tool.Config
	Embedding embedding.Config
}

// ServerConfig contains HTTP server settings. A zero WriteTimeout leaves
// streaming responses unbounded.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"0"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RateLimitConfig limits requests per client IP. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"0"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

// ChatConfig contains turn handling settings.
type ChatConfig struct {
	SystemPrompt      string        `env:"CHAT_SYSTEM_PROMPT"  envDefault:"You are a helpful assistant."`
	WorkerPoolSize    int           `env:"WORKER_POOL_SIZE"    envDefault:"16"`
	StreamMaxDuration time.Duration `env:"STREAM_MAX_DURATION" envDefault:"0"`
}

// MemoryConfig selects and sizes the conversation history backend.
type MemoryConfig struct {
	Backend string        `env:"MEMORY_BACKEND" envDefault:"redis"`
	Window  int           `env:"MEMORY_WINDOW"  envDefault:"20"`
	TTL     time.Duration `env:"MEMORY_TTL"     envDefault:"168h"`
}

// RetrievalConfig tunes knowledge base search.
type RetrievalConfig struct {
	TopK      int     `env:"RETRIEVAL_TOP_K"     envDefault:"5"`
	Threshold float64 `env:"RETRIEVAL_THRESHOLD" envDefault:"0.7"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out

	Log       *observability.LogConfig
	Server    *ServerConfig
	CORS      *CORSConfig
	RateLimit *RateLimitConfig
	Chat      *ChatConfig
	Routing   *routing.Config
	Memory    *MemoryConfig
	Retention *retention.Config
	Redis     *redis.Config
	Pebble    *pebble.Config
	Search    *redis.SearchConfig
	Retrieval *RetrievalConfig
	OpenAI    *openai.Config
	Tools     *tool.Config
	Embedding *embedding.Config
}

// Load loads environment files and parses configuration.
func Load() (*Config, error) {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Log:       &cfg.Log,
		Server:    &cfg.Server,
		CORS:      &cfg.CORS,
		RateLimit: &cfg.RateLimit,
		Chat:      &cfg.Chat,
		Routing:   &cfg.Routing,
		Memory:    &cfg.Memory,
		Retention: &cfg.Retention,
		Redis:     &cfg.Redis,
		Pebble:    &cfg.Pebble,
		Search:    &cfg.Search,
		Retrieval: &cfg.Retrieval,
		OpenAI:    &cfg.OpenAI,
		Tools:     &cfg.Tools,
		Embedding: &cfg.Embedding,
	}
}
