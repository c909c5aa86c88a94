package product

import (
	"context"

	"pharmastock/internal/core/id"
)

// ListFilter narrows product listings.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

// Repository defines the interface for product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error

	// GetByID returns PRODUCT_NOT_FOUND when the product does not exist.
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// FindByBarcode returns NOT_FOUND when no product carries the barcode.
	FindByBarcode(ctx context.Context, barcode string) (*Product, error)

	Exists(ctx context.Context, productID id.ID) (bool, error)

	// List returns a page of products ordered by name and the total count.
	List(ctx context.Context, filter ListFilter) ([]*Product, int, error)

	// ListAll returns every product ordered by name. Used by reports.
	ListAll(ctx context.Context) ([]*Product, error)
}
