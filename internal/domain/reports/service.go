package reports

import (
	"context"
	"fmt"
	"time"

	"pharmastock/internal/core/dates"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/tx"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/product"
	"pharmastock/internal/domain/stock"
	"pharmastock/pkg/logger"
)

// Service provides report generation operations.
type Service struct {
	products ProductLister
	prices   PriceSource
	calc     *stock.Calculator
	dates    *dates.Normalizer
	txm      tx.ReadOnlyManager
}

// NewService creates a new reports service. Every report runs inside one
// read-only transaction of txm.
func NewService(products ProductLister, prices PriceSource, calc *stock.Calculator, normalizer *dates.Normalizer, txm tx.ReadOnlyManager) *Service {
	return &Service{
		products: products,
		prices:   prices,
		calc:     calc,
		dates:    normalizer,
		txm:      txm,
	}
}

func readOnly[T any](ctx context.Context, txm tx.ReadOnlyManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// LowStock lists products with 0 < stock <= threshold.
// A negative threshold selects the default.
func (s *Service) LowStock(ctx context.Context, threshold int64) (*StockLevelReport, error) {
	return s.stockLevel(ctx, stock.StatusLowStock, threshold)
}

// OutOfStock lists products with no stock left.
func (s *Service) OutOfStock(ctx context.Context) (*StockLevelReport, error) {
	return s.stockLevel(ctx, stock.StatusOutOfStock, stock.DefaultLowStockThreshold)
}

// StockLevels lists every product with its status.
func (s *Service) StockLevels(ctx context.Context, threshold int64) ([]ProductStock, error) {
	return readOnly(ctx, s.txm, func(ctx context.Context) ([]ProductStock, error) {
		return s.stockLevels(ctx, threshold)
	})
}

func (s *Service) stockLevels(ctx context.Context, threshold int64) ([]ProductStock, error) {
	if threshold < 0 {
		threshold = stock.DefaultLowStockThreshold
	}

	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]ProductStock, 0, len(products))
	for _, p := range products {
		summary, err := s.calc.StockSummary(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("stock summary of %s: %w", p.ID, err)
		}
		items = append(items, productStock(p, summary, threshold))
	}
	return items, nil
}

func (s *Service) stockLevel(ctx context.Context, status stock.Status, threshold int64) (*StockLevelReport, error) {
	if threshold < 0 {
		threshold = stock.DefaultLowStockThreshold
	}

	all, err := s.StockLevels(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("get %s report: %w", status, err)
	}

	report := &StockLevelReport{
		Status:      status,
		Threshold:   threshold,
		GeneratedAt: time.Now().UTC(),
		Items:       make([]ProductStock, 0),
	}
	for _, item := range all {
		if item.Status == status {
			report.Items = append(report.Items, item)
		}
	}
	report.TotalItems = len(report.Items)
	return report, nil
}

// Expiring lists batches with stock expiring within windowDays of asOf.
// asOf defaults to today, windowDays < 0 to the default window.
func (s *Service) Expiring(ctx context.Context, windowDays int, asOf *dates.Date) (*ExpiringReport, error) {
	return readOnly(ctx, s.txm, func(ctx context.Context) (*ExpiringReport, error) {
		return s.expiring(ctx, windowDays, asOf)
	})
}

func (s *Service) expiring(ctx context.Context, windowDays int, asOf *dates.Date) (*ExpiringReport, error) {
	if windowDays < 0 {
		windowDays = stock.DefaultExpiryWindowDays
	}
	day := s.dates.Today()
	if asOf != nil {
		day = *asOf
	}

	batches, err := s.calc.ExpiringBatches(ctx, windowDays, day)
	if err != nil {
		return nil, fmt.Errorf("get expiring report: %w", err)
	}

	names, err := s.productNames(ctx)
	if err != nil {
		return nil, err
	}

	report := &ExpiringReport{
		AsOf:       day,
		WindowDays: windowDays,
		Items:      make([]ExpiringItem, 0, len(batches)),
	}
	for _, b := range batches {
		report.Items = append(report.Items, ExpiringItem{ExpiringBatch: b, ProductName: names[b.ProductID]})
		if b.DaysLeft < 0 {
			report.ExpiredUnits += b.Stock
		} else {
			report.ExpiringUnits += b.Stock
		}
	}
	report.TotalItems = len(report.Items)
	return report, nil
}

// StockValue values every in-stock product at the average MRP of its purchase rows.
func (s *Service) StockValue(ctx context.Context) (*StockValueReport, error) {
	return readOnly(ctx, s.txm, s.stockValue)
}

func (s *Service) stockValue(ctx context.Context) (*StockValueReport, error) {
	levels, err := s.stockLevels(ctx, stock.DefaultLowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("get stock value report: %w", err)
	}

	report := &StockValueReport{
		GeneratedAt: time.Now().UTC(),
		Items:       make([]StockValueItem, 0),
		TotalValue:  types.Zero(),
	}
	for _, level := range levels {
		if level.TotalStock <= 0 {
			continue
		}
		mrps, err := s.prices.PurchaseMRPs(ctx, level.ProductID)
		if err != nil {
			return nil, fmt.Errorf("purchase MRPs of %s: %w", level.ProductID, err)
		}

		avg := types.Average(mrps).Round(2)
		value := types.MoneyFromUnits(level.TotalStock, avg)
		report.Items = append(report.Items, StockValueItem{
			ProductID:   level.ProductID,
			ProductName: level.ProductName,
			Stock:       level.TotalStock,
			AverageMRP:  avg,
			Value:       value,
		})
		report.TotalUnits += level.TotalStock
		report.TotalValue = report.TotalValue.Add(value)
	}
	report.TotalItems = len(report.Items)
	return report, nil
}

// Digest counts what the alert scan should report.
func (s *Service) Digest(ctx context.Context, threshold int64, windowDays int) (*Digest, error) {
	return readOnly(ctx, s.txm, func(ctx context.Context) (*Digest, error) {
		return s.digest(ctx, threshold, windowDays)
	})
}

func (s *Service) digest(ctx context.Context, threshold int64, windowDays int) (*Digest, error) {
	levels, err := s.stockLevels(ctx, threshold)
	if err != nil {
		return nil, err
	}
	expiring, err := s.expiring(ctx, windowDays, nil)
	if err != nil {
		return nil, err
	}

	d := &Digest{ProductsViewed: len(levels)}
	for _, level := range levels {
		switch level.Status {
		case stock.StatusLowStock:
			d.LowStock++
		case stock.StatusOutOfStock:
			d.OutOfStock++
		}
	}
	for _, item := range expiring.Items {
		if item.DaysLeft < 0 {
			d.Expired++
		} else {
			d.ExpiringSoon++
		}
		d.UnitsAtRisk += item.Stock
	}

	logger.Debug(ctx, "stock digest computed",
		"low_stock", d.LowStock,
		"out_of_stock", d.OutOfStock,
		"expiring_soon", d.ExpiringSoon,
		"expired", d.Expired,
	)
	return d, nil
}

func (s *Service) productNames(ctx context.Context) (map[id.ID]string, error) {
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	names := make(map[id.ID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}

func productStock(p *product.Product, summary *stock.Summary, threshold int64) ProductStock {
	return ProductStock{
		ProductID:   p.ID,
		ProductName: p.Name,
		Company:     p.Company,
		Packing:     p.Packing,
		Category:    p.Category,
		Status:      stock.ClassifyStock(summary.TotalStock, threshold),
		TotalStock:  summary.TotalStock,
		Batches:     summary.Batches,
	}
}
