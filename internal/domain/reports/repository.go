package reports

import (
	"context"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/product"
)

// ProductLister returns the whole catalog.
type ProductLister interface {
	ListAll(ctx context.Context) ([]*product.Product, error)
}

// PriceSource returns the MRP of every purchase row of a product.
type PriceSource interface {
	PurchaseMRPs(ctx context.Context, productID id.ID) ([]types.Money, error)
}
