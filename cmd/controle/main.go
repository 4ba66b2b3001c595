package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/controle-financeiro-go/internal/config"
	"github.com/boddenberg/controle-financeiro-go/internal/handler"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/memory"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/resilience"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/sqlite"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/supabase"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/repository"
	"github.com/boddenberg/controle-financeiro-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger("api", cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("readiness_ttl", cfg.ReadinessTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), "controle-financeiro", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	newFinance := func(store port.FinanceStore) *service.FinanceService {
		return service.NewFinanceService(store, resilienceCfg, metrics, logger)
	}

	// --- Store & setup ---
	opts := service.SetupOptions{
		Backend:      cfg.DataBackend,
		ReadinessTTL: cfg.ReadinessTTL,
		NewFinance:   newFinance,
	}

	var setup *service.SetupService

	switch cfg.DataBackend {
	case config.BackendSupabase:
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		opts.OpenStore = func(storeURL, apiKey string) (port.FinanceStore, error) {
			client := supabase.NewClient(
				httpClient,
				storeURL,
				apiKey,
				resilience.NewCircuitBreaker("supabase", logger),
				resilienceCfg,
				logger,
			)
			return repository.New(client), nil
		}
		opts.SaveCredentials = func(storeURL, apiKey string) error {
			return config.SaveCredentials(cfg.EnvFile, storeURL, apiKey)
		}
		setup = service.NewSetupService(opts, logger)

		creds, err := config.LoadCredentials(cfg.EnvFile)
		if err != nil {
			logger.Fatal("failed to read credentials", zap.String("env_file", cfg.EnvFile), zap.Error(err))
		}
		if creds.Configured() {
			store, err := opts.OpenStore(creds.URL, creds.Key)
			if err != nil {
				logger.Fatal("failed to open supabase store", zap.String("supabase_url", creds.URL), zap.Error(err))
			}
			setup.Install(newFinance(store), creds.URL)
			logger.Info("using Supabase as data backend", zap.String("supabase_url", creds.URL))
		} else {
			logger.Warn("Supabase credentials not set: finance routes unavailable until POST /setup",
				zap.String("env_file", cfg.EnvFile),
				zap.Bool("env_file_found", creds.FileFound),
			)
		}

	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLiteDBPath, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite database", zap.String("path", cfg.SQLiteDBPath), zap.Error(err))
		}
		defer db.Close()

		setup = service.NewSetupService(opts, logger)
		setup.Install(newFinance(repository.New(db)), "")
		logger.Info("using SQLite as data backend", zap.String("path", cfg.SQLiteDBPath))

	case config.BackendMemory:
		setup = service.NewSetupService(opts, logger)
		setup.Install(newFinance(repository.New(memory.New())), "")
		logger.Warn("using in-memory data backend: data is lost on restart")
	}
	defer setup.Close()

	// --- Router ---
	router := handler.NewRouter(setup, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
