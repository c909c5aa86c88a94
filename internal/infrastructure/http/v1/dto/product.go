package dto

import (
	"time"

	"pharmastock/internal/domain/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Name     string  `json:"name" binding:"required,max=200"`
	Company  *string `json:"company"`
	Packing  *string `json:"packing"`
	Category *string `json:"category"`
	Barcode  *string `json:"barcode" binding:"omitempty,max=64"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Name)
	p.Company = r.Company
	p.Packing = r.Packing
	p.Category = r.Category
	p.Barcode = r.Barcode
	return p
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Name     string  `json:"name" binding:"required,max=200"`
	Company  *string `json:"company"`
	Packing  *string `json:"packing"`
	Category *string `json:"category"`
	Barcode  *string `json:"barcode" binding:"omitempty,max=64"`
}

// ApplyTo overwrites the descriptive fields of p.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	p.Name = r.Name
	p.Company = r.Company
	p.Packing = r.Packing
	p.Category = r.Category
	p.Barcode = r.Barcode
}

// --- Response DTOs ---

// ProductResponse is the response for a product.
type ProductResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Company   *string   `json:"company,omitempty"`
	Packing   *string   `json:"packing,omitempty"`
	Category  *string   `json:"category,omitempty"`
	Barcode   *string   `json:"barcode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromProduct converts domain entity to response DTO.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Company:   p.Company,
		Packing:   p.Packing,
		Category:  p.Category,
		Barcode:   p.Barcode,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
