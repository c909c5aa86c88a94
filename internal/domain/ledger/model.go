// Package ledger defines the four append-only stock events: purchases, sales,
// purchase returns and sales returns. Stock is always derived from these rows.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
)

// Kind identifies which ledger a row belongs to.
type Kind string

const (
	KindPurchase       Kind = "purchase"
	KindSale           Kind = "sale"
	KindPurchaseReturn Kind = "purchase_return"
	KindSalesReturn    Kind = "sales_return"
)

// Kinds lists every ledger in a stable order.
var Kinds = []Kind{KindPurchase, KindSale, KindPurchaseReturn, KindSalesReturn}

// ParseKind validates s as a ledger kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if !k.Valid() {
		return "", apperror.NewFieldValidation("kind", fmt.Sprintf("unknown ledger kind %q", s)).
			WithDetail("allowed", Kinds)
	}
	return k, nil
}

// Valid reports whether k is one of the four ledgers.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindSale, KindPurchaseReturn, KindSalesReturn:
		return true
	}
	return false
}

// Sign is +1 for events that add stock and -1 for events that remove it.
func (k Kind) Sign() int64 {
	switch k {
	case KindPurchase, KindSalesReturn:
		return 1
	default:
		return -1
	}
}

// NormalizeBatch returns the comparison key for a batch number.
// Rows typed as " b1 " and "B1" belong to the same batch.
func NormalizeBatch(batchNo string) string {
	return strings.ToUpper(strings.TrimSpace(batchNo))
}

// Entry is one ledger row.
type Entry struct {
	ID        id.ID  `db:"id" json:"id"`
	Kind      Kind   `db:"-" json:"kind"`
	ProductID id.ID  `db:"product_id" json:"productId"`
	BatchNo   string `db:"batch_no" json:"batchNo"`

	// Expiry is stored as MM-YYYY. Empty when the entry did not carry one.
	Expiry string `db:"expiry" json:"expiry,omitempty"`

	Quantity int64       `db:"quantity" json:"quantity"`
	Rate     types.Money `db:"rate" json:"rate"`
	MRP      types.Money `db:"mrp" json:"mrp"`

	// InvoiceRef links the row to the purchase or sales invoice it came from.
	InvoiceRef *string `db:"invoice_ref" json:"invoiceRef,omitempty"`

	// EntryDate is the YYYY-MM-DD transaction date.
	EntryDate *string `db:"entry_date" json:"entryDate,omitempty"`

	CreatedBy *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewEntry creates an entry with a fresh ID.
func NewEntry(kind Kind, productID id.ID, batchNo string, quantity int64) *Entry {
	return &Entry{
		ID:        id.New(),
		Kind:      kind,
		ProductID: productID,
		BatchNo:   batchNo,
		Quantity:  quantity,
		Rate:      types.Zero(),
		MRP:       types.Zero(),
		CreatedAt: time.Now().UTC(),
	}
}

// BatchKey returns the normalized batch number.
func (e *Entry) BatchKey() string {
	return NormalizeBatch(e.BatchNo)
}

// Validate checks the fields every ledger row needs.
func (e *Entry) Validate(_ context.Context) error {
	if !e.Kind.Valid() {
		return apperror.NewFieldValidation("kind", fmt.Sprintf("unknown ledger kind %q", e.Kind))
	}
	if id.IsNil(e.ProductID) {
		return apperror.NewFieldValidation("productId", "product is required")
	}

	e.BatchNo = strings.TrimSpace(e.BatchNo)
	if e.BatchNo == "" {
		return apperror.NewFieldValidation("batchNo", "batch number is required")
	}
	if len(e.BatchNo) > 50 {
		return apperror.NewFieldValidation("batchNo", "batch number must be at most 50 characters")
	}

	if e.Quantity <= 0 {
		return apperror.NewInvalidQuantity(e.Quantity)
	}
	if e.Rate.IsNegative() {
		return apperror.NewFieldValidation("rate", "rate cannot be negative")
	}
	if e.MRP.IsNegative() {
		return apperror.NewFieldValidation("mrp", "MRP cannot be negative")
	}
	return nil
}

// SameBatch reports whether e and other refer to the same product and batch.
func (e *Entry) SameBatch(other *Entry) bool {
	return e.ProductID == other.ProductID && e.BatchKey() == other.BatchKey()
}

// DateFields is the free-text date columns of one row, as stored.
type DateFields struct {
	ID        id.ID   `db:"id"`
	Expiry    string  `db:"expiry"`
	EntryDate *string `db:"entry_date"`
}
