package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
)

// EntryRequest is the body of every ledger write. Quantity is checked by the
// stock engine so that a zero or negative value reports INVALID_QUANTITY.
type EntryRequest struct {
	ProductID  string          `json:"productId" binding:"required"`
	BatchNo    string          `json:"batchNo" binding:"required,max=50"`
	Expiry     string          `json:"expiry"`
	Quantity   int64           `json:"quantity"`
	Rate       decimal.Decimal `json:"rate"`
	MRP        decimal.Decimal `json:"mrp"`
	InvoiceRef *string         `json:"invoiceRef" binding:"omitempty,max=64"`
	EntryDate  *string         `json:"entryDate"`
}

// ToEntry converts the request into a ledger row of the given kind.
func (r *EntryRequest) ToEntry(kind ledger.Kind) (*ledger.Entry, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return nil, apperror.NewFieldValidation("productId", "invalid productId format")
	}
	e := ledger.NewEntry(kind, productID, r.BatchNo, r.Quantity)
	e.Expiry = r.Expiry
	e.Rate = r.Rate
	e.MRP = r.MRP
	e.InvoiceRef = r.InvoiceRef
	e.EntryDate = r.EntryDate
	return e, nil
}

// BulkPurchaseRequest imports many purchase rows at once.
type BulkPurchaseRequest struct {
	Entries []EntryRequest `json:"entries" binding:"required,min=1,max=5000,dive"`
}

// BulkImportResponse reports how many rows were stored.
type BulkImportResponse struct {
	Imported int64 `json:"imported"`
}

// EntryResponse is a stored ledger row.
type EntryResponse struct {
	ID         string          `json:"id"`
	Kind       ledger.Kind     `json:"kind"`
	ProductID  string          `json:"productId"`
	BatchNo    string          `json:"batchNo"`
	Expiry     string          `json:"expiry,omitempty"`
	Quantity   int64           `json:"quantity"`
	Rate       decimal.Decimal `json:"rate"`
	MRP        decimal.Decimal `json:"mrp"`
	InvoiceRef *string         `json:"invoiceRef,omitempty"`
	EntryDate  *string         `json:"entryDate,omitempty"`
	CreatedBy  *string         `json:"createdBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// FromEntry converts a ledger row to its response.
func FromEntry(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:         e.ID.String(),
		Kind:       e.Kind,
		ProductID:  e.ProductID.String(),
		BatchNo:    e.BatchNo,
		Expiry:     e.Expiry,
		Quantity:   e.Quantity,
		Rate:       e.Rate,
		MRP:        e.MRP,
		InvoiceRef: e.InvoiceRef,
		EntryDate:  e.EntryDate,
		CreatedBy:  e.CreatedBy,
		CreatedAt:  e.CreatedAt,
	}
}
