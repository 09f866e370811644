// cmd/portal-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github-portal/internal/cache"
	"github-portal/internal/common/config"
	"github-portal/internal/common/logger"
	"github-portal/internal/common/observability"
	"github-portal/internal/engine"
	githubbackend "github-portal/internal/upstream/github"
	"github-portal/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting portal engine...",
		zap.String("environment", cfg.App.Environment),
		zap.String("cacheBackend", cfg.Cache.Backend),
	)

	obs := observability.New("portal-engine")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Cache-aside store ---
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		client := cache.NewRedisClient(cfg.Cache.Redis)
		ttl := time.Duration(cfg.Cache.TTLFactor*cfg.Engine.DefaultMaxAgeSeconds) * time.Second
		redisStore := cache.NewRedisStore(client, ttl)

		err = retryWithBackoff(func() error {
			return redisStore.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisStore.Close()
		zapLog.Info("Redis connected successfully")

		store = redisStore
	default:
		store = cache.NewMemoryStore(cfg.Cache.MaxEntries)
	}

	// --- Upstream backend + engine ---
	methodRegistry := engine.NewMethodRegistry()
	backend := githubbackend.New(cfg.GitHub.BaseURL, log)
	backend.Register(methodRegistry)

	eng := engine.New(cfg.Engine, store, methodRegistry, log)
	defer eng.Drain()

	tokens := engine.TokenSetFrom(cfg.GitHub.Tokens)
	if tokens.Len() == 0 {
		zapLog.Warn("no organization tokens configured, aggregations will fail")
	}

	// --- Job registry ---
	var jobRegistry *registry.JobRegistry
	if cfg.Engine.JobRegistryPath != "" {
		jobRegistry, err = registry.LoadRegistry(cfg.Engine.JobRegistryPath)
		if err != nil {
			zapLog.Fatal("job registry load failed", zap.Error(err))
		}
		zapLog.Info("job registry loaded",
			zap.String("path", cfg.Engine.JobRegistryPath),
			zap.Int("jobs", len(jobRegistry.Jobs)),
		)
	}

	// --- Metrics & pprof endpoint ---
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			zapLog.Info("metrics endpoint listening", zap.String("address", cfg.Metrics.Address))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zapLog.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// --- Cache warming loop ---
	if jobRegistry != nil && cfg.Engine.WarmIntervalSeconds > 0 && tokens.Len() > 0 {
		go warmLoop(ctx, eng, obs, tokens, jobRegistry, cfg, log)
	}

	zapLog.Info("portal engine started")
	<-ctx.Done()
	zapLog.Info("shutting down, draining background refreshes")
}

// warmLoop periodically runs every registered aggregation job so interactive
// callers hit a warm cache. Failures are logged and retried next interval.
func warmLoop(ctx context.Context, eng *engine.Engine, obs *observability.Observability, tokens *engine.TokenSet, jobRegistry *registry.JobRegistry, cfg *config.Config, log logger.Logger) {
	interval := config.GetDuration(cfg.Engine.WarmIntervalSeconds)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runAll := func() {
		for i := range jobRegistry.Jobs {
			spec := &jobRegistry.Jobs[i]

			started := time.Now()
			opts := engine.Options{Filters: spec.Options}
			result, err := eng.InvokeCollection(ctx, tokens, spec.ToJob(), opts, spec.Policy())
			if err != nil {
				obs.RecordAggregation(ctx, spec.Name, "failure")
				log.WithError(err).Error("cache warming failed", map[string]interface{}{
					"job": spec.Name,
				})
				continue
			}
			obs.RecordAggregation(ctx, spec.Name, "success")
			obs.RecordAggregationDuration(ctx, time.Since(started), spec.Name)
			log.Info("cache warmed", map[string]interface{}{
				"job":      spec.Name,
				"entities": len(result.Data),
				"cost":     result.Cost,
			})
		}
	}

	runAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runAll()
		}
	}
}
