// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/dates"
	"pharmastock/internal/domain/auth"
	"pharmastock/internal/domain/product"
	"pharmastock/internal/domain/reports"
	"pharmastock/internal/domain/stock"
	"pharmastock/internal/infrastructure/http/v1/handlers"
	"pharmastock/internal/infrastructure/http/v1/middleware"
	"pharmastock/internal/infrastructure/metrics"
	"pharmastock/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Database backs the readiness and info endpoints
	Database handlers.Database

	// Logger for request logging
	Logger *logger.Logger

	// Metrics records HTTP metrics and serves /metrics. Optional.
	Metrics *metrics.Metrics

	// JWTValidator enables bearer authentication on /api/v1. Optional.
	JWTValidator middleware.JWTValidator

	// CorrectionRoles may edit sales and delete ledger rows when
	// authentication is enabled. Defaults to auth.CorrectionRoles.
	CorrectionRoles []string

	// Idempotency enables X-Idempotency-Key on ledger writes. Optional.
	Idempotency middleware.IdempotencyStore

	Products   *product.Service
	Stock      *stock.Service
	Entries    stock.EntryReader
	Aggregator *stock.Aggregator
	Calculator *stock.Calculator
	Validator  *stock.Validator
	Reports    *reports.Service
	Dates      *dates.Normalizer

	// LowStockThreshold and ExpiryWindowDays are the report defaults.
	LowStockThreshold int64
	ExpiryWindowDays  int
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Recovery runs inside ErrorHandler so a recovered panic is still rendered.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "route not found",
		})
	})

	if cfg.Database != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Database)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		api.Use(middleware.Auth(cfg.JWTValidator))
	}

	base := handlers.NewBaseHandler()

	handlers.NewProductHandler(base, cfg.Products).RegisterRoutes(api.Group("/products"))

	handlers.NewStockHandler(base, cfg.Aggregator, cfg.Calculator, cfg.Validator, cfg.LowStockThreshold).
		RegisterRoutes(api.Group("/stock"))

	ledgerGroup := api.Group("/ledger")
	if cfg.Idempotency != nil {
		ledgerGroup.Use(middleware.Idempotency(cfg.Idempotency))
	}
	var correction []gin.HandlerFunc
	if cfg.JWTValidator != nil {
		roles := cfg.CorrectionRoles
		if len(roles) == 0 {
			roles = auth.CorrectionRoles
		}
		correction = append(correction, middleware.RequireRole(roles...))
	}
	handlers.NewLedgerHandler(base, cfg.Stock, cfg.Entries).RegisterRoutes(ledgerGroup, correction...)

	handlers.NewReportsHandler(base, cfg.Reports, cfg.Dates, cfg.LowStockThreshold, cfg.ExpiryWindowDays).
		RegisterRoutes(api.Group("/reports"))

	datesHandler := handlers.NewDatesHandler(base, cfg.Dates)
	api.POST("/dates/parse", datesHandler.Parse)

	return router
}
