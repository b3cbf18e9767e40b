// Package bootstrap builds the engine and its dependencies from
// configuration. The API server and the admin CLI share it.
package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/cache"
	"github.com/keyfindings/backend/internal/cache/redis"
	"github.com/keyfindings/backend/internal/keyfindings"
	"github.com/keyfindings/backend/internal/orchestrator"
	"github.com/keyfindings/backend/internal/payload"
	"github.com/keyfindings/backend/internal/performance"
	"github.com/keyfindings/backend/internal/registry"
	"github.com/keyfindings/backend/internal/storage/sqlite"
	"github.com/keyfindings/backend/pkg/config"
	"github.com/keyfindings/backend/pkg/logger"
)

type Components struct {
	Store    *cache.Store
	Monitor  *performance.Monitor
	Registry *registry.Registry
	Engine   *keyfindings.Engine
}

func (c *Components) Close() error {
	return c.Store.Close()
}

func NewBackend(cfg *config.Config) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		client, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	case "redis":
		client, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "memory":
		return cache.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func Build(cfg *config.Config) (*Components, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}
	store := cache.NewStore(backend)

	providers := registry.DefaultProviders()
	if len(cfg.Providers) > 0 {
		providers = registry.FromConfig(cfg.Providers)
	}
	reg, err := registry.New(providers)
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(reg.Chain("")) == 0 {
		logger.Warn("No provider has credentials; generation will fail until one is configured")
	}

	prompts, err := payload.NewTemplatePromptBuilder(cfg.Payload.PromptsFile)
	if err != nil {
		store.Close()
		return nil, err
	}

	monitor := performance.NewMonitor()
	orch := orchestrator.New(reg, monitor, orchestrator.FromConfig(cfg.Orchestrator))
	engine := keyfindings.NewEngine(store, orch, payload.NewFileAggregator(cfg.Payload.Dir), prompts, monitor)

	logger.Info("Engine initialized",
		zap.String("cache_backend", backend.Name()),
		zap.Int("models", len(reg.Chain(""))),
		zap.String("payload_dir", cfg.Payload.Dir),
	)

	return &Components{
		Store:    store,
		Monitor:  monitor,
		Registry: reg,
		Engine:   engine,
	}, nil
}
