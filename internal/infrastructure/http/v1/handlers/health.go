package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/infrastructure/storage/postgres"
)

// Version is reported by /health/info. Overridden at build time.
var Version = "dev"

// Database is what the health endpoints need from the pool.
type Database interface {
	Ping(ctx context.Context) error
	Stats() postgres.PoolStats
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db Database
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Database) *HealthHandler {
	return &HealthHandler{db: db}
}

// Live handles liveness checks (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness checks (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	stat := h.db.Stats()

	c.JSON(http.StatusOK, gin.H{
		"app":     "pharmastock",
		"version": Version,
		"database": map[string]any{
			"total_conns":    stat.TotalConns,
			"acquired_conns": stat.AcquiredConns,
			"idle_conns":     stat.IdleConns,
			"max_conns":      stat.MaxConns,
		},
	})
}
