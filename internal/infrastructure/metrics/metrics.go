// Package metrics exposes Prometheus metrics for the HTTP API, stock
// validation outcomes, ledger writes and the alert scan.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/reports"
	"pharmastock/internal/domain/stock"
	"pharmastock/internal/infrastructure/storage/postgres"
)

// Metrics holds all service metrics.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Stock metrics
	StockValidations *prometheus.CounterVec
	StockChanges     *prometheus.CounterVec
	StockUnitsMoved  *prometheus.CounterVec

	// Alert scan metrics
	LowStockProducts   prometheus.Gauge
	OutOfStockProducts prometheus.Gauge
	ExpiringBatches    prometheus.Gauge
	ExpiredBatches     prometheus.Gauge
	UnitsAtRisk        prometheus.Gauge
	LastScan           prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Namespace:   "pharmastock",
	}
}

// New creates a Metrics instance with its own registry.
func New(config Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}
	ns := config.Namespace
	serviceLabel := prometheus.Labels{"service": config.ServiceName}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: serviceLabel,
		},
	)

	m.StockValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stock_validations_total",
			Help:      "Stock validations by operation and outcome",
		},
		[]string{"service", "operation", "outcome"},
	)

	m.StockChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stock_changes_total",
			Help:      "Ledger writes by kind and action",
		},
		[]string{"service", "kind", "action"},
	)

	m.StockUnitsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stock_units_moved_total",
			Help:      "Units added to or removed from stock by ledger writes",
		},
		[]string{"service", "direction"},
	)

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        name,
			Help:        help,
			ConstLabels: serviceLabel,
		})
	}
	m.LowStockProducts = gauge("low_stock_products", "Products at or below the low stock threshold at the last scan")
	m.OutOfStockProducts = gauge("out_of_stock_products", "Products without stock at the last scan")
	m.ExpiringBatches = gauge("expiring_batches", "Batches with stock expiring inside the window at the last scan")
	m.ExpiredBatches = gauge("expired_batches", "Batches with stock past their expiry at the last scan")
	m.UnitsAtRisk = gauge("units_at_risk", "Units in expiring or expired batches at the last scan")
	m.LastScan = gauge("last_scan_timestamp_seconds", "Unix time of the last completed alert scan")

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StockValidations,
		m.StockChanges,
		m.StockUnitsMoved,
		m.LowStockProducts,
		m.OutOfStockProducts,
		m.ExpiringBatches,
		m.ExpiredBatches,
		m.UnitsAtRisk,
		m.LastScan,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// ObserveValidation implements stock.Observer.
func (m *Metrics) ObserveValidation(operation string, result stock.Result) {
	outcome := "accepted"
	if !result.Valid {
		outcome = string(result.Reason())
	}
	m.StockValidations.WithLabelValues(m.serviceName, operation, outcome).Inc()
}

// RecordStockChange counts one ledger write.
func (m *Metrics) RecordStockChange(change *stock.StockChange) {
	m.StockChanges.WithLabelValues(m.serviceName, string(change.Kind), string(change.Action)).Inc()

	delta := change.NewStock - change.PreviousStock
	switch {
	case delta > 0:
		m.StockUnitsMoved.WithLabelValues(m.serviceName, "in").Add(float64(delta))
	case delta < 0:
		m.StockUnitsMoved.WithLabelValues(m.serviceName, "out").Add(float64(-delta))
	}
}

// SetDigest publishes the result of an alert scan.
func (m *Metrics) SetDigest(d *reports.Digest, at time.Time) {
	m.LowStockProducts.Set(float64(d.LowStock))
	m.OutOfStockProducts.Set(float64(d.OutOfStock))
	m.ExpiringBatches.Set(float64(d.ExpiringSoon))
	m.ExpiredBatches.Set(float64(d.Expired))
	m.UnitsAtRisk.Set(float64(d.UnitsAtRisk))
	m.LastScan.Set(float64(at.Unix()))
}

// RegisterPool exports connection pool statistics, read at scrape time.
func (m *Metrics) RegisterPool(pool interface{ Stats() postgres.PoolStats }) {
	stat := func(name, help string, value func(postgres.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "pharmastock",
			Subsystem:   "db_pool",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": m.serviceName},
		}, func() float64 { return value(pool.Stats()) })
	}

	m.registry.MustRegister(
		stat("total_conns", "Open connections", func(s postgres.PoolStats) float64 { return float64(s.TotalConns) }),
		stat("acquired_conns", "Connections in use", func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) }),
		stat("idle_conns", "Idle connections", func(s postgres.PoolStats) float64 { return float64(s.IdleConns) }),
		stat("max_conns", "Pool size limit", func(s postgres.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}

// AuditTrail counts stock changes before handing them to the wrapped trail.
type AuditTrail struct {
	next    stock.AuditTrail
	metrics *Metrics
}

var _ stock.AuditTrail = (*AuditTrail)(nil)

// WrapAuditTrail decorates next with change counters.
func (m *Metrics) WrapAuditTrail(next stock.AuditTrail) *AuditTrail {
	return &AuditTrail{next: next, metrics: m}
}

// RecordStockChange implements stock.AuditTrail.
func (a *AuditTrail) RecordStockChange(ctx context.Context, change *stock.StockChange) error {
	if err := a.next.RecordStockChange(ctx, change); err != nil {
		return err
	}
	a.metrics.RecordStockChange(change)
	return nil
}

// History implements stock.AuditTrail.
func (a *AuditTrail) History(ctx context.Context, kind ledger.Kind, entryID id.ID, limit int) ([]stock.StockChange, error) {
	return a.next.History(ctx, kind, entryID, limit)
}
