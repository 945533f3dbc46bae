// graphd is the art knowledge graph daemon. It wires the neo4j store,
// cache layer, subgraph generator and analyzer together and exposes
// health, metrics and operational debug endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"artgraph-backend/internal/analyzer"
	"artgraph-backend/internal/breaker"
	"artgraph-backend/internal/cache"
	"artgraph-backend/internal/config"
	"artgraph-backend/internal/errors"
	"artgraph-backend/internal/generator"
	"artgraph-backend/internal/observability"
	"artgraph-backend/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default config.yaml)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("graphd exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewCollector("artgraph")

	trackBreakerState := func(dependency, _, to string) {
		metrics.BreakerState.WithLabelValues(dependency).Set(breakerStateValue(to))
	}

	storeBreaker := breaker.New(breaker.Config{
		Name:             "neo4j",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		OnStateChange:    trackBreakerState,
	}, logger)
	metrics.BreakerState.WithLabelValues("neo4j").Set(0)

	graphStore := store.New(store.Config{
		URI:            cfg.Store.URI,
		Username:       cfg.Store.Username,
		Password:       cfg.Store.Password,
		Database:       cfg.Store.Database,
		MaxPoolSize:    cfg.Store.MaxPoolSize,
		QueryTimeout:   cfg.Store.QueryTimeout,
		MaxRetries:     cfg.Store.MaxRetries,
		RetryBaseDelay: cfg.Store.RetryBaseDelay,
		RetryMaxDelay:  cfg.Store.RetryMaxDelay,
	}, storeBreaker, logger, metrics)

	if err := graphStore.Connect(ctx); err != nil {
		return err
	}
	defer graphStore.Close(context.Background())

	backend, closeBackend, err := buildCacheBackend(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	cacheBreaker := breaker.New(breaker.Config{
		Name:             "cache",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		OnStateChange:    trackBreakerState,
	}, logger)
	metrics.BreakerState.WithLabelValues("cache").Set(0)
	cacheLayer := cache.NewLayer(backend, cacheBreaker, cfg.Cache.MaxValueSize, logger, metrics)

	repo := store.NewGraphRepository(graphStore, logger)

	app := &application{
		repo: repo,
		generator: generator.New(repo, cacheLayer, generator.Config{
			MaxDepth:         cfg.Generator.MaxDepth,
			MaxGraphSize:     cfg.Generator.MaxGraphSize,
			BatchSize:        cfg.Generator.BatchSize,
			CacheTTL:         cfg.Cache.TTL,
			LayoutIterations: cfg.Generator.LayoutIterations,
		}, logger, metrics),
		analyzer: analyzer.New(repo, cacheLayer, analyzer.Config{
			CacheTTL: cfg.Cache.TTL,
			MaxHops:  cfg.Analyzer.MaxHops,
			Workers:  cfg.Analyzer.Workers,
		}, logger, metrics),
		store:  graphStore,
		logger: logger,
	}

	logger.Info("graphd started",
		zap.String("environment", cfg.Environment),
		zap.String("address", cfg.Server.Address),
		zap.String("cache_provider", cfg.Cache.Provider),
	)

	return serve(ctx, cfg, logger, metrics, app)
}

// application bundles the wired components behind the debug endpoints.
type application struct {
	repo      *store.GraphRepository
	generator *generator.Generator
	analyzer  *analyzer.Analyzer
	store     *store.Store
	logger    *zap.Logger
}

// serve runs the listener until the context is cancelled, then shuts down
// gracefully.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Collector, app *application) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", app.handleHealth)
	mux.HandleFunc("/debug/stats", app.handleStats)
	mux.HandleFunc("/debug/subgraph", app.handleSubgraph)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		http.Error(w, "store unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleStats reports node count and whole-graph shape metrics.
func (a *application) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := a.repo.CountNodes(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	graphMetrics, err := a.analyzer.Metrics(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, map[string]any{
		"node_count": count,
		"metrics":    graphMetrics,
	})
}

// handleSubgraph generates the subgraph around one artwork, mainly for
// inspecting generation behavior in a running deployment.
func (a *application) handleSubgraph(w http.ResponseWriter, r *http.Request) {
	artworkID, err := uuid.Parse(r.URL.Query().Get("artwork_id"))
	if err != nil {
		http.Error(w, "invalid artwork_id", http.StatusBadRequest)
		return
	}
	depth := 1
	if raw := r.URL.Query().Get("depth"); raw != "" {
		if depth, err = strconv.Atoi(raw); err != nil {
			http.Error(w, "invalid depth", http.StatusBadRequest)
			return
		}
	}

	sg, err := a.generator.Generate(r.Context(), artworkID, depth, generator.Options{})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, sg)
}

func (a *application) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		a.logger.Warn("response encoding failed", zap.Error(err))
	}
}

func (a *application) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errors.IsUnavailable(err), errors.IsCircuitOpen(err):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// buildCacheBackend selects the configured backend. Redis failures at
// startup are fatal; a misconfigured cache should not silently degrade to
// process-local memory.
func buildCacheBackend(cfg config.Cache, logger *zap.Logger) (cache.Backend, func(), error) {
	switch cfg.Provider {
	case "redis":
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(cfg.MaxItems, cfg.MaxMemory, logger)
		return mc, func() {}, nil
	}
}

func buildLogger(cfg config.Logging) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
