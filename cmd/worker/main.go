// Package main is the entry point for the pharmastock background worker.
// It periodically scans stock levels and expiries, publishes the results as
// gauges and prunes the stock audit trail.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pharmastock/internal/config"
	"pharmastock/internal/core/dates"
	"pharmastock/internal/domain/reports"
	"pharmastock/internal/domain/stock"
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

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting pharmastock worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.AppName = "pharmastock-worker"
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, postgres.RetryPolicy{
		MaxAttempts: cfg.TxMaxAttempts,
		Backoff:     postgres.DefaultRetryPolicy().Backoff,
	}).WithLockTimeout(cfg.LockTimeout)

	productRepo := catalog_repo.NewProductRepo(txManager)
	ledgerRepo := ledger_repo.NewRepo(txManager)
	normalizer := dates.New()
	calculator := stock.NewCalculator(stock.NewAggregator(ledgerRepo), ledgerRepo, productRepo, normalizer)

	auditStore, err := postgres.NewStockAudit(txManager, postgres.DefaultCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create stock audit", "error", err)
	}

	m := metrics.New(metrics.DefaultConfig("pharmastock-worker"))
	m.RegisterPool(pool)

	worker := NewWorker(WorkerConfig{
		Digests:           reports.NewService(productRepo, ledgerRepo, calculator, normalizer, txManager),
		Audit:             auditStore,
		Idempotency:       postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL),
		Sink:              m,
		Logger:            log,
		ScanInterval:      cfg.WorkerScanInterval,
		CleanupInterval:   time.Hour,
		LowStockThreshold: cfg.LowStockThreshold,
		ExpiryWindowDays:  cfg.ExpiryWindowDays,
		AuditRetention:    cfg.AuditRetention,
	})

	var metricsServer *http.Server
	if cfg.MetricsPort != "" {
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infow("metrics server starting", "port", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("worker stopped")
}
