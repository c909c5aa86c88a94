package dto

import (
	"pharmastock/internal/domain/stock"
)

// --- Validation requests ---

// ValidateSaleRequest checks whether a sale can be recorded.
type ValidateSaleRequest struct {
	ProductID     string  `json:"productId" binding:"required"`
	BatchNo       string  `json:"batchNo" binding:"required"`
	Quantity      int64   `json:"quantity"`
	ExcludeSaleID *string `json:"excludeSaleId"`
}

// ValidateReturnRequest checks whether a purchase or sales return can be recorded.
type ValidateReturnRequest struct {
	ProductID       string  `json:"productId" binding:"required"`
	BatchNo         string  `json:"batchNo" binding:"required"`
	Quantity        int64   `json:"quantity"`
	ExcludeReturnID *string `json:"excludeReturnId"`
}

// ValidateEditSaleRequest checks whether an existing sale can be rewritten.
type ValidateEditSaleRequest struct {
	SaleID    string `json:"saleId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	BatchNo   string `json:"batchNo" binding:"required"`
	Quantity  int64  `json:"quantity"`
}

// ValidationResponse is the outcome of a stock validation.
type ValidationResponse struct {
	stock.Result
	ErrorType stock.Reason `json:"errorType,omitempty"`
}

// FromResult converts a validator result.
func FromResult(r stock.Result) ValidationResponse {
	return ValidationResponse{Result: r, ErrorType: r.Reason()}
}

// --- Stock responses ---

// BatchStatusResponse is the available quantity of one batch.
type BatchStatusResponse struct {
	ProductID      string `json:"productId"`
	BatchNo        string `json:"batchNo"`
	AvailableStock int64  `json:"availableStock"`
	IsAvailable    bool   `json:"isAvailable"`
}

// StockStatusResponse is the classified stock of one product.
type StockStatusResponse struct {
	ProductID string       `json:"productId"`
	Status    stock.Status `json:"status"`
	Stock     int64        `json:"stock"`
	Threshold int64        `json:"threshold"`
}

// AggregateRequest selects the ledger rows to sum.
type AggregateRequest struct {
	ProductID   string  `form:"productId" binding:"required"`
	BatchNo     *string `form:"batchNo"`
	ExcludeKind string  `form:"excludeKind"`
	ExcludeID   string  `form:"excludeId"`
}

// AggregateResponse carries the four ledger sums and the net stock.
type AggregateResponse struct {
	stock.Totals
	Stock int64 `json:"stock"`
}
