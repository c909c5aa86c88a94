package product

import (
	"context"
	"fmt"
	"time"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/tx"
	"pharmastock/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service provides business logic for the product catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new product service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	if err := p.Validate(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkBarcodeFree(ctx, p); err != nil {
			return err
		}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product created", "product_id", p.ID, "name", p.Name)
	return nil
}

// GetByID retrieves a product.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// GetByBarcode retrieves a product by its barcode.
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	return s.repo.FindByBarcode(ctx, barcode)
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Product, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Update replaces the descriptive fields of an existing product.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := s.checkBarcodeFree(ctx, p); err != nil {
			return err
		}

		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
}

func (s *Service) checkBarcodeFree(ctx context.Context, p *Product) error {
	if p.Barcode == nil {
		return nil
	}
	existing, err := s.repo.FindByBarcode(ctx, *p.Barcode)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != p.ID {
		return apperror.NewDuplicate("product", "barcode", *p.Barcode)
	}
	return nil
}
