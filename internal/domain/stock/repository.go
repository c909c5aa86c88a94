// Package stock derives batch and product stock from the ledger, validates
// stock-affecting mutations and records them.
package stock

import (
	"context"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/product"
)

// Repository is the read side of the ledger used for stock derivation.
type Repository interface {
	// SumQuantities returns the quantity total of one ledger, 0 when no row matches.
	SumQuantities(ctx context.Context, kind ledger.Kind, filter SumFilter) (int64, error)

	// ListBatches enumerates the distinct normalized batches that appear in any
	// of the four ledgers. A nil productID lists batches of every product.
	ListBatches(ctx context.Context, productID *id.ID) ([]BatchRef, error)

	// PurchaseMRPs returns the MRP of every purchase row of the product.
	PurchaseMRPs(ctx context.Context, productID id.ID) ([]types.Money, error)
}

// SumFilter scopes SumQuantities.
type SumFilter struct {
	ProductID id.ID

	// BatchKey is the normalized batch number. Nil spans every batch.
	BatchKey *string

	// ExcludeID removes one row from the sum.
	ExcludeID *id.ID
}

// BatchRef identifies a batch seen in the ledger.
type BatchRef struct {
	ProductID id.ID  `db:"product_id"`
	BatchKey  string `db:"batch_key"`

	// BatchNo is the batch number as first written, for display.
	BatchNo string `db:"batch_no"`

	// Expiry is taken from the earliest purchase row that carries one.
	Expiry string `db:"expiry"`
}

// ProductCatalog is the part of the product repository stock needs.
type ProductCatalog interface {
	Exists(ctx context.Context, productID id.ID) (bool, error)
	GetByID(ctx context.Context, productID id.ID) (*product.Product, error)
}

// EntryReader loads a single ledger row.
type EntryReader interface {
	Get(ctx context.Context, kind ledger.Kind, entryID id.ID) (*ledger.Entry, error)
}
