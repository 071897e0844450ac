package observability

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL"       envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

//nolint:gochecknoglobals // process-wide base logger
var (
	baseLogger *zap.Logger
	baseMu     sync.RWMutex
)

// InitLogger builds the base logger from cfg and installs it.
func InitLogger(cfg *LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg != nil && cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg != nil && cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	baseMu.Lock()
	baseLogger = logger
	baseMu.Unlock()

	return logger, nil
}

func base() *zap.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()

	if baseLogger == nil {
		return zap.NewNop()
	}
	return baseLogger
}

// FromContext returns the base logger annotated with every id found in ctx.
func FromContext(ctx context.Context) *zap.Logger {
	fields := make([]zap.Field, 0, len(loggedKeys))
	for _, key := range loggedKeys {
		if value := get(ctx, key); value != "" {
			fields = append(fields, zap.String(string(key), value))
		}
	}
	return base().With(fields...)
}
