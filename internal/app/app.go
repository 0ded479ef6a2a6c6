// Package app assembles the gateway: configuration, persistence, the
// registries, the admission chain and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ollagate/ollagate/internal/adapter/auth"
	"github.com/ollagate/ollagate/internal/adapter/balancer"
	"github.com/ollagate/ollagate/internal/adapter/cache"
	"github.com/ollagate/ollagate/internal/adapter/health"
	"github.com/ollagate/ollagate/internal/adapter/registry"
	"github.com/ollagate/ollagate/internal/adapter/security"
	"github.com/ollagate/ollagate/internal/adapter/stats"
	"github.com/ollagate/ollagate/internal/adapter/store"
	"github.com/ollagate/ollagate/internal/app/handlers"
	"github.com/ollagate/ollagate/internal/app/middleware"
	"github.com/ollagate/ollagate/internal/config"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/internal/util"
	"github.com/ollagate/ollagate/pkg/format"
)

// Application owns every long-lived component and their shutdown order.
type Application struct {
	configMu sync.RWMutex
	config   *config.Config

	server   *http.Server
	logger   *logger.StyledLogger
	registry *RouteRegistry

	store    *store.FileStore
	keys     *registry.KeyRegistry
	channels *registry.ChannelRegistry
	tokens   *auth.TokenRegistry
	access   *security.AccessController
	limiter  *security.RateLimiter
	stats    *stats.Collector
	cache    *cache.MemoryCache
	checker  *health.Checker
	chain    *middleware.Chain
	handler  *handlers.Handler

	errCh chan error
}

func New(styledLogger *logger.StyledLogger) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	fileStore, err := store.NewFileStore(cfg.Storage.DataDir, cfg.Storage.FlushDebounce, styledLogger)
	if err != nil {
		return nil, err
	}

	keys, err := registry.NewKeyRegistry(fileStore, styledLogger)
	if err != nil {
		return nil, err
	}
	keys.EnsureDefault(cfg.Upstream.BaseURL)

	channels, err := registry.NewChannelRegistry(fileStore, styledLogger)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenRegistry(fileStore, styledLogger)
	if err != nil {
		return nil, err
	}

	accessCtl, err := security.NewAccessController(fileStore, cfg.Access, styledLogger)
	if err != nil {
		return nil, err
	}

	collector, err := stats.NewCollector(fileStore, cfg.Storage.StatsRetentionDays, styledLogger)
	if err != nil {
		return nil, err
	}

	limiter := security.NewRateLimiter(cfg.RateLimit, styledLogger)
	responseCache := cache.NewMemoryCache(cache.DefaultTTL, cache.DefaultMaxEntries)
	selector := balancer.NewPoolSelector(keys, channels)
	checker := health.NewChecker(keys, cfg.Upstream.HealthCheckInterval, styledLogger)

	trustedCIDRs, err := util.ParseTrustedCIDRs(cfg.Server.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted proxy CIDRs: %w", err)
	}

	chain := middleware.NewChain(accessCtl, limiter, tokens, cfg.Upstream.APIToken, cfg.Server.TrustProxyHeaders, trustedCIDRs, styledLogger)

	handler := handlers.New(selector, keys, channels, tokens, collector, responseCache, handlers.Config{
		ConnectTimeout:  cfg.Upstream.ConnectTimeout,
		ResponseTimeout: cfg.Upstream.ResponseTimeout,
		MaxRetries:      cfg.Upstream.MaxRetries,
	}, styledLogger)

	app := &Application{
		config:   cfg,
		logger:   styledLogger,
		registry: NewRouteRegistry(styledLogger),
		store:    fileStore,
		keys:     keys,
		channels: channels,
		tokens:   tokens,
		access:   accessCtl,
		limiter:  limiter,
		stats:    collector,
		cache:    responseCache,
		checker:  checker,
		chain:    chain,
		handler:  handler,
		errCh:    make(chan error, 1),
	}

	config.OnReload(func(newCfg *config.Config) {
		app.setConfig(newCfg)
		limiter.UpdateConfig(newCfg.RateLimit)
		accessCtl.ApplyConfig(newCfg.Access)
		styledLogger.Info("Configuration reloaded")
	})

	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return app, nil
}

func (a *Application) setConfig(cfg *config.Config) {
	a.configMu.Lock()
	a.config = cfg
	a.configMu.Unlock()
}

func (a *Application) getConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}

// Start brings up the health loop and the web server.
func (a *Application) Start(ctx context.Context) error {
	go func() {
		select {
		case err := <-a.errCh:
			a.logger.Error("Server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	a.checker.Start(ctx)
	a.startWebServer()

	summary := a.keys.GetSummary()
	a.logger.Info("Ollagate started", "bind", a.server.Addr, "backends", format.BackendsUp(summary.Healthy, summary.Total))
	return nil
}

// Stop tears everything down: server first so no new requests arrive, then
// the background loops, then a forced persistence flush.
func (a *Application) Stop(ctx context.Context) error {
	timeout := a.getConfig().Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)

	a.checker.Stop()
	a.limiter.Stop()
	a.cache.Stop()
	a.store.Close()

	if err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}
