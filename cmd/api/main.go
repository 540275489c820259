package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-insights-platform/internal/artifact"
	"call-insights-platform/internal/audit"
	"call-insights-platform/internal/auth"
	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/company"
	"call-insights-platform/internal/config"
	"call-insights-platform/internal/httpapi"
	"call-insights-platform/internal/ingest"
	"call-insights-platform/internal/insight"
	"call-insights-platform/internal/queue"
	"call-insights-platform/internal/report"
	"call-insights-platform/pkg/logger"
	"call-insights-platform/pkg/metrics"
	"call-insights-platform/pkg/store"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	adminAuth, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

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

	reg := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipeline(reg)

	callStore := calls.NewPostgresStore(db)
	insightStore := insight.NewPostgresStore(db)
	companies := company.NewService(company.NewPostgresStore(db))
	auditLog := audit.NewService(audit.NewPostgresRepo(db))
	companies.SetAudit(auditLog)
	jobs := queue.NewRedisQueue(rdb, "")

	gate := ingest.NewGate(callStore, artifacts, jobs, cfg.Media.MaxUploadBytes, cfg.Media.AllowedMIME, log, pipelineMetrics)
	reports := report.NewEngine(report.NewPostgresStore(db), callStore, insightStore, companies, auditLog, log, pipelineMetrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Ingest:    gate,
		Calls:     callStore,
		Insights:  insightStore,
		Reports:   reports,
		Companies: companies,
	}
	registerRoutes(r, h, companies, adminAuth, db, reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
