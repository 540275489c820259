package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"call-insights-platform/internal/analysis"
	"call-insights-platform/internal/artifact"
	"call-insights-platform/internal/audit"
	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/config"
	"call-insights-platform/internal/insight"
	"call-insights-platform/internal/queue"
	"call-insights-platform/internal/worker"
	"call-insights-platform/pkg/logger"
	"call-insights-platform/pkg/metrics"
	"call-insights-platform/pkg/store"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The worker process drives analysis: it consumes jobs, runs the configured
// analysis capability, and persists insights. It shares the database and
// queue with the api process but serves no tenant traffic, only /metrics
// and /healthz.
func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env).With("proc", "worker")
	slog.SetDefault(log)

	db, err := store.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), store.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := store.OpenRedis(rootCtx, store.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	artifacts, err := artifact.NewFSStore(cfg.Media.Root)
	if err != nil {
		log.Error("media store init failed", "err", err, "root", cfg.Media.Root)
		os.Exit(1)
	}

	analyzer, err := buildAnalyzer(cfg.Analysis)
	if err != nil {
		log.Error("analyzer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipeline(reg)

	callStore := calls.NewPostgresStore(db)
	jobs := queue.NewRedisQueue(rdb, "")
	auditLog := audit.NewService(audit.NewPostgresRepo(db))

	pool := worker.NewPool(worker.Deps{
		Queue:     jobs,
		Calls:     callStore,
		Artifacts: artifacts,
		Analyzer:  analyzer,
		Insights:  insight.NewPostgresStore(db),
		Audit:     auditLog,
		Retry: worker.RetryPolicy{
			MaxAttempts:  cfg.Pipeline.MaxAttempts,
			InitialDelay: cfg.Pipeline.RetryInitialDelay,
			MaxDelay:     cfg.Pipeline.RetryMaxDelay,
		},
		Workers:         cfg.Pipeline.Workers,
		LeaseTTL:        cfg.Pipeline.LeaseTTL,
		AnalysisTimeout: cfg.Pipeline.AnalysisTimeout,
		Log:             log,
		Metrics:         pipelineMetrics,
	})

	sweeper := worker.NewSweeper(
		callStore, jobs,
		cfg.Pipeline.SweepInterval, cfg.Pipeline.ReceivedStaleAfter,
		cfg.Pipeline.MaxAttempts,
		log, pipelineMetrics,
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		pool.Run(rootCtx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(rootCtx)
	}()
	go func() {
		defer wg.Done()
		pollQueueDepth(rootCtx, jobs, pipelineMetrics)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.HealthCheck(r.Context(), db, 2*time.Second); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("worker metrics listening", "addr", srv.Addr, "workers", cfg.Pipeline.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown failed", "err", err)
	}
	wg.Wait()
}

func buildAnalyzer(cfg config.AnalysisConfig) (analysis.Capability, error) {
	switch cfg.Provider {
	case "openai":
		return analysis.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return &analysis.Simulated{}, nil
	}
}

func pollQueueDepth(ctx context.Context, q *queue.RedisQueue, m *metrics.Pipeline) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth, err := q.Depth(ctx); err == nil {
				m.QueueDepth.Set(float64(depth))
			}
		}
	}
}
