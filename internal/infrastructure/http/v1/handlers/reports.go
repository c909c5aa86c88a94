package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/dates"
	"pharmastock/internal/domain/reports"
	"pharmastock/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service    *reports.Service
	dates      *dates.Normalizer
	threshold  int64
	windowDays int
}

// NewReportsHandler creates a new reports handler. threshold and windowDays
// apply when a request does not override them.
func NewReportsHandler(base *BaseHandler, service *reports.Service, normalizer *dates.Normalizer, threshold int64, windowDays int) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
		dates:       normalizer,
		threshold:   threshold,
		windowDays:  windowDays,
	}
}

// GetLowStock handles GET /reports/low-stock
func (h *ReportsHandler) GetLowStock(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}

	report, err := h.service.LowStock(c.Request.Context(), h.thresholdOf(q))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// GetOutOfStock handles GET /reports/out-of-stock
func (h *ReportsHandler) GetOutOfStock(c *gin.Context) {
	report, err := h.service.OutOfStock(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// GetExpiring handles GET /reports/expiring
func (h *ReportsHandler) GetExpiring(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c, q)
	if !ok {
		return
	}

	report, err := h.service.Expiring(c.Request.Context(), h.windowOf(q), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// GetStockValue handles GET /reports/stock-value
func (h *ReportsHandler) GetStockValue(c *gin.Context) {
	report, err := h.service.StockValue(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// GetDigest handles GET /reports/digest
func (h *ReportsHandler) GetDigest(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}

	digest, err := h.service.Digest(c.Request.Context(), h.thresholdOf(q), h.windowOf(q))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, digest)
}

// ExportStock handles GET /reports/stock.xlsx
func (h *ReportsHandler) ExportStock(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	threshold := h.thresholdOf(q)

	h.sendWorkbook(c, "stock", func(ctx context.Context, w io.Writer) error {
		return h.service.ExportStockExcel(ctx, w, threshold)
	})
}

// ExportExpiring handles GET /reports/expiring.xlsx
func (h *ReportsHandler) ExportExpiring(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c, q)
	if !ok {
		return
	}
	window := h.windowOf(q)

	h.sendWorkbook(c, "expiring", func(ctx context.Context, w io.Writer) error {
		return h.service.ExportExpiringExcel(ctx, w, window, asOf)
	})
}

// sendWorkbook renders into a buffer first so that a failure still produces
// a JSON error instead of a truncated file.
func (h *ReportsHandler) sendWorkbook(c *gin.Context, name string, render func(context.Context, io.Writer) error) {
	var buf bytes.Buffer
	if err := render(c.Request.Context(), &buf); err != nil {
		h.Error(c, err)
		return
	}

	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, reports.ExcelContentType, buf.Bytes())
}

func (h *ReportsHandler) bindQuery(c *gin.Context) (dto.ReportQuery, bool) {
	var q dto.ReportQuery
	return q, h.BindQuery(c, &q)
}

func (h *ReportsHandler) thresholdOf(q dto.ReportQuery) int64 {
	if q.Threshold != nil {
		return *q.Threshold
	}
	return h.threshold
}

func (h *ReportsHandler) windowOf(q dto.ReportQuery) int {
	if q.WindowDays != nil {
		return *q.WindowDays
	}
	return h.windowDays
}

func (h *ReportsHandler) asOf(c *gin.Context, q dto.ReportQuery) (*dates.Date, bool) {
	if q.AsOf == nil {
		return nil, true
	}
	d, err := h.dates.Parse("asOf", *q.AsOf)
	if err != nil {
		var verr *dates.ValidationError
		if asValidation(err, &verr) {
			h.Error(c, verr.AppError())
		} else {
			h.Error(c, apperror.NewFieldValidation("asOf", err.Error()))
		}
		return nil, false
	}
	return d, true
}

// RegisterRoutes registers report routes.
func (h *ReportsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/low-stock", h.GetLowStock)
	rg.GET("/out-of-stock", h.GetOutOfStock)
	rg.GET("/expiring", h.GetExpiring)
	rg.GET("/stock-value", h.GetStockValue)
	rg.GET("/digest", h.GetDigest)
	rg.GET("/stock.xlsx", h.ExportStock)
	rg.GET("/expiring.xlsx", h.ExportExpiring)
}
