package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/config"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/handler"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/client"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/resilience"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/session"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, observability.WithService("pato-rico-bfa"))
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("api_url", cfg.APIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("stale_time", cfg.StaleTime),
		zap.Duration("session_idle_ttl", cfg.SessionIdleTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "pato-rico-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Query cache ---
	queries := query.NewRegistry(cfg.SessionIdleTTL, query.Options{
		StaleTime: cfg.StaleTime,
		Recorder:  metrics,
	})
	defer queries.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker(client.ServiceName, client.IsClientError)

	// --- Client ---
	api := client.New(
		&http.Client{Timeout: cfg.HTTPTimeout},
		cfg.APIURL,
		session.ContextTokens,
		cb,
		resilienceCfg,
		metrics,
		logger,
		client.WithPaths(client.Paths{
			Profile:      cfg.ProfilePath,
			ExpenseTypes: cfg.ExpenseTypesPath,
		}),
		client.WithUnauthorizedHook(func(ctx context.Context) {
			if scope, ok := query.ScopeFromContext(ctx); ok {
				queries.Drop(scope)
			}
		}),
	)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Ledger:    service.NewLedger(api, queries, metrics, logger),
		Dashboard: service.NewDashboard(api, queries, logger),
		Auth:      service.NewAuth(api, queries, logger),
		Sessions:  session.NewCookieManager(cfg.CookieSecret, cfg.SessionTTL, cfg.CookieSecure, logger),
		Queries:   queries,
		Breaker:   cb,
		Metrics:   metrics,
		Logger:    logger,
		Filters:   filter.Options{},
	})

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
