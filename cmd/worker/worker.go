package main

import (
	"context"
	"time"

	appctx "pharmastock/internal/core/context"
	"pharmastock/internal/domain/reports"
	"pharmastock/pkg/logger"
)

// DigestSource computes the stock health summary.
type DigestSource interface {
	Digest(ctx context.Context, threshold int64, windowDays int) (*reports.Digest, error)
}

// AuditCleaner prunes audit rows older than the retention window.
type AuditCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// KeyCleaner drops expired idempotency keys.
type KeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// DigestSink receives every successful digest.
type DigestSink interface {
	SetDigest(d *reports.Digest, at time.Time)
}

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	Digests     DigestSource
	Audit       AuditCleaner
	Idempotency KeyCleaner
	Sink        DigestSink
	Logger      *logger.Logger

	ScanInterval    time.Duration
	CleanupInterval time.Duration

	LowStockThreshold int64
	ExpiryWindowDays  int
	AuditRetention    time.Duration
}

// Worker runs the periodic stock scan and audit cleanup.
type Worker struct {
	cfg WorkerConfig
	log *logger.Logger
	now func() time.Time
}

func NewWorker(cfg WorkerConfig) *Worker {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{
		cfg: cfg,
		log: log.WithComponent("worker"),
		now: time.Now,
	}
}

// Run scans once immediately, then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	scanTicker := time.NewTicker(w.cfg.ScanInterval)
	defer scanTicker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	w.Scan(ctx)
	w.Cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTicker.C:
			w.Scan(ctx)
		case <-cleanupTicker.C:
			w.Cleanup(ctx)
		}
	}
}

// Scan computes one digest and publishes it. Failures are logged and the
// previous gauges are left untouched.
func (w *Worker) Scan(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext("stock_scan"))
	log := w.log.WithContext(ctx)
	started := w.now()

	d, err := w.cfg.Digests.Digest(ctx, w.cfg.LowStockThreshold, w.cfg.ExpiryWindowDays)
	if err != nil {
		if ctx.Err() == nil {
			log.Errorw("stock scan failed", "error", err)
		}
		return
	}

	if w.cfg.Sink != nil {
		w.cfg.Sink.SetDigest(d, started)
	}

	fields := []any{
		"products", d.ProductsViewed,
		"low_stock", d.LowStock,
		"out_of_stock", d.OutOfStock,
		"expiring_soon", d.ExpiringSoon,
		"expired", d.Expired,
		"units_at_risk", d.UnitsAtRisk,
		"duration", w.now().Sub(started),
	}
	if d.OutOfStock > 0 || d.Expired > 0 {
		log.Warnw("stock scan found attention items", fields...)
		return
	}
	log.Infow("stock scan completed", fields...)
}

// Cleanup deletes audit rows past retention and expired idempotency keys.
func (w *Worker) Cleanup(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext("cleanup"))
	log := w.log.WithContext(ctx)

	if w.cfg.Audit != nil && w.cfg.AuditRetention > 0 {
		n, err := w.cfg.Audit.Cleanup(ctx, w.cfg.AuditRetention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Errorw("audit cleanup failed", "error", err)
		case n > 0:
			log.Infow("cleaned up stock audit", "count", n)
		}
	}

	if w.cfg.Idempotency != nil {
		n, err := w.cfg.Idempotency.CleanupExpired(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Errorw("idempotency cleanup failed", "error", err)
		case n > 0:
			log.Infow("cleaned up idempotency keys", "count", n)
		}
	}
}
