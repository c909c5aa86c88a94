package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
	"pharmastock/internal/infrastructure/http/v1/dto"
)

// LedgerHandler records purchases, sales and returns through the stock service.
type LedgerHandler struct {
	*BaseHandler
	service *stock.Service
	entries stock.EntryReader
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, service *stock.Service, entries stock.EntryReader) *LedgerHandler {
	return &LedgerHandler{
		BaseHandler: base,
		service:     service,
		entries:     entries,
	}
}

// CreatePurchase handles POST /ledger/purchases
func (h *LedgerHandler) CreatePurchase(c *gin.Context) {
	h.createEntry(c, ledger.KindPurchase, h.service.RecordPurchase)
}

// CreateSale handles POST /ledger/sales
func (h *LedgerHandler) CreateSale(c *gin.Context) {
	h.createEntry(c, ledger.KindSale, h.service.RecordSale)
}

func (h *LedgerHandler) createEntry(
	c *gin.Context,
	kind ledger.Kind,
	record func(context.Context, *ledger.Entry) (*stock.StockChange, error),
) {
	var req dto.EntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	e, err := req.ToEntry(kind)
	if err != nil {
		h.Error(c, err)
		return
	}

	change, err := record(c.Request.Context(), e)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, change)
}

// BulkPurchases handles POST /ledger/purchases/bulk
func (h *LedgerHandler) BulkPurchases(c *gin.Context) {
	var req dto.BulkPurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entries := make([]*ledger.Entry, len(req.Entries))
	for i := range req.Entries {
		e, err := req.Entries[i].ToEntry(ledger.KindPurchase)
		if err != nil {
			h.Error(c, err)
			return
		}
		entries[i] = e
	}

	n, err := h.service.BulkImportPurchases(c.Request.Context(), entries)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.BulkImportResponse{Imported: n})
}

// UpdateSale handles PUT /ledger/sales/:id
func (h *LedgerHandler) UpdateSale(c *gin.Context) {
	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.EntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	e, err := req.ToEntry(ledger.KindSale)
	if err != nil {
		h.Error(c, err)
		return
	}

	change, err := h.service.UpdateSale(c.Request.Context(), saleID, e)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, change)
}

// CreatePurchaseReturn handles POST /ledger/purchase-returns
func (h *LedgerHandler) CreatePurchaseReturn(c *gin.Context) {
	h.createReturn(c, ledger.KindPurchaseReturn, h.service.RecordPurchaseReturn)
}

// CreateSalesReturn handles POST /ledger/sales-returns
func (h *LedgerHandler) CreateSalesReturn(c *gin.Context) {
	h.createReturn(c, ledger.KindSalesReturn, h.service.RecordSalesReturn)
}

func (h *LedgerHandler) createReturn(
	c *gin.Context,
	kind ledger.Kind,
	record func(context.Context, *ledger.Entry) (stock.ReturnOutcome, error),
) {
	var req dto.EntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	e, err := req.ToEntry(kind)
	if err != nil {
		h.Error(c, err)
		return
	}

	outcome, err := record(c.Request.Context(), e)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, outcome)
}

// Get handles GET /ledger/:kind/:id
func (h *LedgerHandler) Get(c *gin.Context) {
	kind, entryID, ok := h.parseKindAndID(c)
	if !ok {
		return
	}

	e, err := h.entries.Get(c.Request.Context(), kind, entryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromEntry(e))
}

// Delete handles DELETE /ledger/:kind/:id
func (h *LedgerHandler) Delete(c *gin.Context) {
	kind, entryID, ok := h.parseKindAndID(c)
	if !ok {
		return
	}

	change, err := h.service.DeleteEntry(c.Request.Context(), kind, entryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, change)
}

// Audit handles GET /ledger/:kind/:id/audit
func (h *LedgerHandler) Audit(c *gin.Context) {
	kind, entryID, ok := h.parseKindAndID(c)
	if !ok {
		return
	}

	history, err := h.service.History(c.Request.Context(), kind, entryID, h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": history, "totalCount": len(history)})
}

func (h *LedgerHandler) parseKindAndID(c *gin.Context) (ledger.Kind, id.ID, bool) {
	kind, err := ledger.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return "", id.Nil(), false
	}
	entryID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return "", id.Nil(), false
	}
	return kind, entryID, true
}

// RegisterRoutes registers ledger routes. correction runs before the handlers
// that change or remove recorded rows.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup, correction ...gin.HandlerFunc) {
	rg.POST("/purchases", h.CreatePurchase)
	rg.POST("/purchases/bulk", h.BulkPurchases)
	rg.POST("/sales", h.CreateSale)
	rg.PUT("/sales/:id", withGuards(correction, h.UpdateSale)...)
	rg.POST("/purchase-returns", h.CreatePurchaseReturn)
	rg.POST("/sales-returns", h.CreateSalesReturn)

	rg.GET("/:kind/:id", h.Get)
	rg.GET("/:kind/:id/audit", h.Audit)
	rg.DELETE("/:kind/:id", withGuards(correction, h.Delete)...)
}

func withGuards(guards []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(guards)+1)
	chain = append(chain, guards...)
	return append(chain, h)
}
