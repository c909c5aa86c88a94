// Package product provides the product catalog the stock ledger refers to.
package product

import (
	"context"
	"strings"
	"time"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
)

// Product is a sellable item. Stock is never stored here; it is derived from
// the ledger per batch.
type Product struct {
	ID        id.ID     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Company   *string   `db:"company" json:"company,omitempty"`
	Packing   *string   `db:"packing" json:"packing,omitempty"`
	Category  *string   `db:"category" json:"category,omitempty"`
	Barcode   *string   `db:"barcode" json:"barcode,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewProduct creates a product with a fresh ID.
func NewProduct(name string) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:        id.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks required fields and normalizes optional ones.
func (p *Product) Validate(_ context.Context) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperror.NewFieldValidation("name", "name is required")
	}
	if len(p.Name) > 200 {
		return apperror.NewFieldValidation("name", "name must be at most 200 characters")
	}

	p.Company = trimOptional(p.Company)
	p.Packing = trimOptional(p.Packing)
	p.Category = trimOptional(p.Category)
	p.Barcode = trimOptional(p.Barcode)

	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
