package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
	"pharmastock/internal/infrastructure/http/v1/dto"
)

// StockHandler serves derived stock and the pre-write validations.
type StockHandler struct {
	*BaseHandler
	aggregator   *stock.Aggregator
	calculator   *stock.Calculator
	validator    *stock.Validator
	lowThreshold int64
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(
	base *BaseHandler,
	aggregator *stock.Aggregator,
	calculator *stock.Calculator,
	validator *stock.Validator,
	lowThreshold int64,
) *StockHandler {
	return &StockHandler{
		BaseHandler:  base,
		aggregator:   aggregator,
		calculator:   calculator,
		validator:    validator,
		lowThreshold: lowThreshold,
	}
}

// GetSummary handles GET /stock/products/:productId/summary
func (h *StockHandler) GetSummary(c *gin.Context) {
	productID, ok := h.ParseIDParam(c, "productId")
	if !ok {
		return
	}

	summary, err := h.calculator.StockSummary(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, summary)
}

// GetStatus handles GET /stock/products/:productId/status
func (h *StockHandler) GetStatus(c *gin.Context) {
	productID, ok := h.ParseIDParam(c, "productId")
	if !ok {
		return
	}

	threshold := int64(h.ParseIntQuery(c, "threshold", int(h.lowThreshold)))
	if threshold < 0 {
		h.Error(c, apperror.NewFieldValidation("threshold", "threshold cannot be negative"))
		return
	}

	status, level, err := h.calculator.Classify(c.Request.Context(), productID, threshold)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.StockStatusResponse{
		ProductID: productID.String(),
		Status:    status,
		Stock:     level,
		Threshold: threshold,
	})
}

// GetBatchStatus handles GET /stock/products/:productId/batches/:batchNo
func (h *StockHandler) GetBatchStatus(c *gin.Context) {
	productID, ok := h.ParseIDParam(c, "productId")
	if !ok {
		return
	}
	batchNo := c.Param("batchNo")

	var excludeSaleID *id.ID
	if raw := c.Query("excludeSaleId"); raw != "" {
		parsed, ok := h.ParseID(c, "excludeSaleId", raw)
		if !ok {
			return
		}
		excludeSaleID = &parsed
	}

	available, isAvailable, err := h.calculator.BatchStockStatus(c.Request.Context(), productID, batchNo, excludeSaleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.BatchStatusResponse{
		ProductID:      productID.String(),
		BatchNo:        batchNo,
		AvailableStock: available,
		IsAvailable:    isAvailable,
	})
}

// Aggregate handles GET /stock/aggregate
func (h *StockHandler) Aggregate(c *gin.Context) {
	var req dto.AggregateRequest
	if !h.BindQuery(c, &req) {
		return
	}

	productID, ok := h.ParseID(c, "productId", req.ProductID)
	if !ok {
		return
	}
	q := stock.AggregateQuery{ProductID: productID, BatchNo: req.BatchNo}

	if req.ExcludeKind != "" || req.ExcludeID != "" {
		kind, err := ledger.ParseKind(req.ExcludeKind)
		if err != nil {
			h.Error(c, err)
			return
		}
		rowID, ok := h.ParseID(c, "excludeId", req.ExcludeID)
		if !ok {
			return
		}
		q.Exclude = &stock.Exclusion{Kind: kind, RowID: rowID}
	}

	totals, err := h.aggregator.Aggregate(c.Request.Context(), q)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AggregateResponse{Totals: totals, Stock: totals.Net()})
}

// ValidateSale handles POST /stock/validate/sale
func (h *StockHandler) ValidateSale(c *gin.Context) {
	var req dto.ValidateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, ok := h.ParseID(c, "productId", req.ProductID)
	if !ok {
		return
	}
	excludeSaleID, err := id.ParseOptional(req.ExcludeSaleID)
	if err != nil {
		h.Error(c, apperror.NewFieldValidation("excludeSaleId", "invalid excludeSaleId format"))
		return
	}

	res := h.validator.ValidateSale(c.Request.Context(), productID, req.BatchNo, req.Quantity, excludeSaleID)
	h.OK(c, dto.FromResult(res))
}

// ValidatePurchaseReturn handles POST /stock/validate/purchase-return
func (h *StockHandler) ValidatePurchaseReturn(c *gin.Context) {
	h.validateReturn(c, h.validator.ValidatePurchaseReturn)
}

// ValidateSalesReturn handles POST /stock/validate/sales-return
func (h *StockHandler) ValidateSalesReturn(c *gin.Context) {
	h.validateReturn(c, h.validator.ValidateSalesReturn)
}

type returnValidation func(ctx context.Context, productID id.ID, batchNo string, quantity int64, excludeReturnID *id.ID) stock.Result

func (h *StockHandler) validateReturn(c *gin.Context, validate returnValidation) {
	var req dto.ValidateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, ok := h.ParseID(c, "productId", req.ProductID)
	if !ok {
		return
	}
	excludeReturnID, err := id.ParseOptional(req.ExcludeReturnID)
	if err != nil {
		h.Error(c, apperror.NewFieldValidation("excludeReturnId", "invalid excludeReturnId format"))
		return
	}

	res := validate(c.Request.Context(), productID, req.BatchNo, req.Quantity, excludeReturnID)
	h.OK(c, dto.FromResult(res))
}

// ValidateEditSale handles POST /stock/validate/edit-sale
func (h *StockHandler) ValidateEditSale(c *gin.Context) {
	var req dto.ValidateEditSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	saleID, ok := h.ParseID(c, "saleId", req.SaleID)
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "productId", req.ProductID)
	if !ok {
		return
	}

	res := h.validator.ValidateEditSale(c.Request.Context(), saleID, productID, req.BatchNo, req.Quantity)
	h.OK(c, dto.FromResult(res))
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products/:productId")
	products.GET("/summary", h.GetSummary)
	products.GET("/status", h.GetStatus)
	products.GET("/batches/:batchNo", h.GetBatchStatus)

	rg.GET("/aggregate", h.Aggregate)

	validate := rg.Group("/validate")
	validate.POST("/sale", h.ValidateSale)
	validate.POST("/purchase-return", h.ValidatePurchaseReturn)
	validate.POST("/sales-return", h.ValidateSalesReturn)
	validate.POST("/edit-sale", h.ValidateEditSale)
}
