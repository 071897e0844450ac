package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	embedding "github.com/davidbz/hearth/internal/embedding/openai"
	"github.com/davidbz/hearth/internal/http"
	"github.com/davidbz/hearth/internal/http/middleware"
	"github.com/davidbz/hearth/internal/interceptor"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider/echo"
	"github.com/davidbz/hearth/internal/provider/openai"
	"github.com/davidbz/hearth/internal/provider/registry"
	"github.com/davidbz/hearth/internal/retention"
	"github.com/davidbz/hearth/internal/routing"
	"github.com/davidbz/hearth/internal/storage/memory"
	"github.com/davidbz/hearth/internal/storage/pebble"
	"github.com/davidbz/hearth/internal/storage/redis"
	"github.com/davidbz/hearth/internal/tool"
	"github.com/davidbz/hearth/internal/workpool"
)

// closers collects resources released on shutdown.
type closers struct {
	fns []func() error
}

func (c *closers) add(fn func() error) {
	c.fns = append(c.fns, fn)
}

// Close releases resources in reverse acquisition order.
func (c *closers) Close() error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		errs = append(errs, c.fns[i]())
	}
	return errors.Join(errs...)
}

type historyStoreParams struct {
	dig.In

	Memory    *config.MemoryConfig
	Pebble    *pebble.Config
	Redis     *goredis.Client
	Resources *closers
}

func newHistoryStore(p historyStoreParams) (domain.HistoryStore, error) {
	switch p.Memory.Backend {
	case config.BackendRedis:
		return redis.NewHistoryStore(p.Redis, p.Memory.Window, p.Memory.TTL), nil
	case config.BackendPebble:
		db, err := pebble.Open(p.Pebble)
		if err != nil {
			return nil, err
		}
		p.Resources.add(db.Close)
		return pebble.NewHistoryStore(db, p.Memory.Window, p.Memory.TTL), nil
	case config.BackendMemory:
		return memory.NewHistoryStore(p.Memory.Window, p.Memory.TTL), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", p.Memory.Backend)
	}
}

func newRedisClient(cfg *redis.Config, resources *closers) *goredis.Client {
	client := redis.NewClient(cfg)
	resources.add(client.Close)
	return client
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newRetriever(
	cfg *embedding.Config,
	retrieval *config.RetrievalConfig,
	search *redis.SearchConfig,
	client *goredis.Client,
) (domain.Retriever, error) {
	if cfg.APIKey == "" {
		return domain.UnavailableRetriever{}, nil
	}

	generator, err := embedding.NewGenerator(*cfg)
	if err != nil {
		return nil, err
	}
	return domain.NewKnowledgeRetriever(
		generator,
		redis.NewVectorSearch(client, search),
		retrieval.Threshold,
		retrieval.TopK,
	), nil
}

type chainParams struct {
	dig.In

	Chat          *config.ChatConfig
	Cancellations *domain.CancellationRegistry
	Memory        *domain.ChatMemory
	Calculator    domain.CostCalculator
	Retriever     domain.Retriever
	Pool          *workpool.Pool
	Metrics       *observability.Metrics
}

func newInterceptorChain(p chainParams) *domain.InterceptorChain {
	return domain.NewInterceptorChain(
		domain.NewFragmentAggregator(),
		interceptor.NewCancellation(p.Cancellations, p.Chat.StreamMaxDuration, p.Metrics),
		interceptor.NewMemory(p.Memory),
		interceptor.NewHistory(p.Calculator, p.Metrics),
		interceptor.NewRetrieval(p.Retriever, p.Pool, p.Metrics),
	)
}

// registerProviders registers echo always and the OpenAI-compatible provider,
// with the configured tools, when a key is configured. Without a key echo
// answers under the routed model names so the service still works end to end.
func registerProviders(
	reg domain.ProviderRegistry,
	pricing domain.PricingRegistry,
	openaiCfg *openai.Config,
	routingCfg *routing.Config,
	tools *tool.Registry,
	toolsCfg *tool.Config,
) error {
	ctx := context.Background()
	logger := observability.FromContext(ctx)

	if openaiCfg.APIKey != "" {
		provider, err := openai.NewProvider(*openaiCfg, openai.WithTools(tools, toolsCfg.MaxRounds))
		if err != nil {
			return fmt.Errorf("failed to create OpenAI provider: %w", err)
		}
		if err := reg.Register(ctx, provider); err != nil {
			return fmt.Errorf("failed to register OpenAI provider: %w", err)
		}
		if err := openai.RegisterPricing(ctx, pricing); err != nil {
			return fmt.Errorf("failed to register OpenAI pricing: %w", err)
		}
	}

	echoProvider := echo.NewProvider()
	if openaiCfg.APIKey == "" {
		logger.Warn("no OpenAI API key configured, answering with the echo model")
		echoProvider = echo.NewProvider(echo.WithModels(routingCfg.ChatModel, routingCfg.ReasonerModel))
	}
	if err := reg.Register(ctx, echoProvider); err != nil {
		return fmt.Errorf("failed to register echo provider: %w", err)
	}
	return echo.RegisterPricing(ctx, pricing, echoProvider)
}

func buildContainer() (*dig.Container, error) {
	container := dig.New()

	constructors := []any{
		// Configuration
		config.Load,
		config.ParseDependenciesConfig,

		// Observability
		observability.InitLogger,
		newMetricsRegistry,
		func(reg *prometheus.Registry) prometheus.Gatherer { return reg },
		func(reg *prometheus.Registry) *observability.Metrics { return observability.NewMetrics(reg) },

		// Infrastructure
		func() *closers { return &closers{} },
		func(cfg *config.ChatConfig) *workpool.Pool { return workpool.New(cfg.WorkerPoolSize) },
		newRedisClient,
		newHistoryStore,

		// Providers and pricing
		func() domain.ProviderRegistry { return registry.NewRegistry() },
		func() domain.PricingRegistry { return domain.NewInMemoryPricingRegistry() },
		func(p domain.PricingRegistry) domain.CostCalculator { return domain.NewTokenCostCalculator(p) },
		func(reg domain.ProviderRegistry, cfg *routing.Config) domain.Router {
			return routing.NewModeRouter(reg, cfg)
		},
		newRetriever,
		tool.NewAlarmBook,
		tool.NewDefaultRegistry,

		// Domain services
		domain.NewCancellationRegistry,
		func(store domain.HistoryStore, pool *workpool.Pool, cfg *config.MemoryConfig, metrics *observability.Metrics) *domain.ChatMemory {
			return domain.NewChatMemory(store, pool, cfg.Window, metrics)
		},
		newInterceptorChain,
		func(
			reg domain.ProviderRegistry,
			router domain.Router,
			chain *domain.InterceptorChain,
			cancellations *domain.CancellationRegistry,
			cfg *config.ChatConfig,
			metrics *observability.Metrics,
		) *domain.ChatService {
			return domain.NewChatService(reg, router, chain, cancellations, cfg.SystemPrompt, metrics)
		},
		func(m *domain.ChatMemory, cfg *retention.Config) (*retention.Sweeper, error) {
			return retention.NewSweeper(m, cfg)
		},

		// HTTP Layer
		middleware.BuildMiddlewareChain,
		http.NewHandler,
		http.NewServer,
	}

	for _, constructor := range constructors {
		if err := container.Provide(constructor); err != nil {
			return nil, fmt.Errorf("failed to provide dependency: %w", err)
		}
	}

	if err := container.Invoke(func(*zap.Logger) {}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := container.Invoke(registerProviders); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	return container, nil
}
