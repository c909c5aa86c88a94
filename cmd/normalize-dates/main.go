// Package main rewrites legacy date values in the four ledger tables:
// expiries become MM-YYYY and entry dates become YYYY-MM-DD.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pharmastock/internal/config"
	"pharmastock/internal/core/dates"
	"pharmastock/internal/infrastructure/storage/postgres"
	"pharmastock/internal/infrastructure/storage/postgres/ledger_repo"
	"pharmastock/pkg/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Log what would be converted and roll back")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(logger.WithLogger(context.Background(), log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.AppName = "pharmastock-normalize-dates"
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 1

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	// One pass over every table; a conflict means another writer is active.
	txManager := postgres.NewTxManager(pool, postgres.RetryPolicy{
		MaxAttempts: 1,
		Backoff:     postgres.DefaultRetryPolicy().Backoff,
	})

	if *dryRun {
		log.Warn("dry run: no changes will be committed")
	}

	converter := NewConverter(ledger_repo.NewRepo(txManager), txManager, dates.New(), log)
	results, err := converter.Run(ctx, *dryRun)
	if err != nil {
		log.Errorw("date conversion failed, nothing was changed", "error", err)
		os.Exit(1)
	}

	for _, res := range results {
		log.Infow("ledger dates checked",
			"kind", res.Kind,
			"scanned", res.Scanned,
			"converted", res.Converted,
			"unparseable", res.Unparseable,
			"dry_run", *dryRun,
		)
	}
}
