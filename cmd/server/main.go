// Package main is the entry point for the pharmastock API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmastock/internal/config"
	"pharmastock/internal/core/dates"
	"pharmastock/internal/domain/auth"
	"pharmastock/internal/domain/product"
	"pharmastock/internal/domain/reports"
	"pharmastock/internal/domain/stock"
	v1 "pharmastock/internal/infrastructure/http/v1"
	"pharmastock/internal/infrastructure/metrics"
	"pharmastock/internal/infrastructure/storage/postgres"
	"pharmastock/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmastock/internal/infrastructure/storage/postgres/ledger_repo"
	"pharmastock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting pharmastock server", "env", cfg.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.AppName = "pharmastock-api"
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool, postgres.RetryPolicy{
		MaxAttempts: cfg.TxMaxAttempts,
		Backoff:     postgres.DefaultRetryPolicy().Backoff,
	}).WithLockTimeout(cfg.LockTimeout)

	// --- Metrics ---
	m := metrics.New(metrics.DefaultConfig("pharmastock-api"))
	m.RegisterPool(pool)

	// --- Repositories ---
	productRepo := catalog_repo.NewProductRepo(txManager)
	ledgerRepo := ledger_repo.NewRepo(txManager)

	auditStore, err := postgres.NewStockAudit(txManager, postgres.DefaultCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create stock audit", "error", err)
	}

	// --- Stock engine ---
	normalizer := dates.New()
	aggregator := stock.NewAggregator(ledgerRepo)
	calculator := stock.NewCalculator(aggregator, ledgerRepo, productRepo, normalizer)
	validator := stock.NewValidator(aggregator, productRepo, ledgerRepo).WithObserver(m)
	processor := stock.NewProcessor(aggregator, productRepo)

	stockService := stock.NewService(stock.ServiceConfig{
		TxManager:  txManager,
		Ledger:     ledgerRepo,
		Locker:     postgres.NewBatchLocker(txManager),
		Products:   productRepo,
		Validator:  validator,
		Processor:  processor,
		Calculator: calculator,
		Dates:      normalizer,
		Audit:      m.WrapAuditTrail(auditStore),
	})

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Database:          pool,
		Logger:            log,
		Metrics:           m,
		Products:          product.NewService(productRepo, txManager),
		Stock:             stockService,
		Entries:           ledgerRepo,
		Aggregator:        aggregator,
		Calculator:        calculator,
		Validator:         validator,
		Reports:           reports.NewService(productRepo, ledgerRepo, calculator, normalizer, txManager),
		Dates:             normalizer,
		Idempotency:       postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL),
		LowStockThreshold: cfg.LowStockThreshold,
		ExpiryWindowDays:  cfg.ExpiryWindowDays,
	}
	if cfg.JWTSecret != "" {
		routerCfg.JWTValidator = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	} else {
		log.Warn("JWT_SECRET is not set; API runs without authentication")
	}

	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	pool.LogStats(ctx)
	log.Info("server stopped")
}
