package stock

import (
	"context"
	"fmt"
	"sort"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/dates"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/pkg/logger"
)

// Status classifies a product by its total stock.
type Status string

const (
	StatusOutOfStock Status = "OUT_OF_STOCK"
	StatusLowStock   Status = "LOW_STOCK"
	StatusInStock    Status = "IN_STOCK"
)

const (
	DefaultLowStockThreshold int64 = 10
	DefaultExpiryWindowDays        = 30
)

// ClassifyStock maps a stock level onto a Status.
func ClassifyStock(stock, lowThreshold int64) Status {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock <= lowThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// BatchStock is the derived state of one batch.
type BatchStock struct {
	ProductID id.ID  `json:"productId"`
	BatchNo   string `json:"batchNo"`

	// Expiry as stored (MM-YYYY); ExpiryDate is nil when it is missing or unparseable.
	Expiry     string      `json:"expiry,omitempty"`
	ExpiryDate *dates.Date `json:"expiryDate,omitempty"`

	Totals
	Stock int64 `json:"stock"`
}

// ExpiringBatch is a batch with stock whose expiry falls inside the window.
type ExpiringBatch struct {
	ProductID  id.ID      `json:"productId"`
	BatchNo    string     `json:"batchNo"`
	Expiry     string     `json:"expiry"`
	ExpiryDate dates.Date `json:"expiryDate"`
	Stock      int64      `json:"stock"`

	// DaysLeft is negative for batches that already expired.
	DaysLeft int `json:"daysLeft"`
}

// Summary is the stock picture of one product.
type Summary struct {
	ProductID            id.ID        `json:"productId"`
	TotalPurchased       int64        `json:"totalPurchased"`
	TotalSold            int64        `json:"totalSold"`
	TotalPurchaseReturns int64        `json:"totalPurchaseReturns"`
	TotalSalesReturns    int64        `json:"totalSalesReturns"`
	TotalStock           int64        `json:"totalStock"`
	Batches              []BatchStock `json:"batches"`
}

// Calculator turns ledger sums into stock levels and classifications.
type Calculator struct {
	agg      *Aggregator
	repo     Repository
	products ProductCatalog
	dates    *dates.Normalizer
}

// NewCalculator creates a new stock calculator.
func NewCalculator(agg *Aggregator, repo Repository, products ProductCatalog, normalizer *dates.Normalizer) *Calculator {
	return &Calculator{
		agg:      agg,
		repo:     repo,
		products: products,
		dates:    normalizer,
	}
}

// BatchStock returns the net stock of one batch.
func (c *Calculator) BatchStock(ctx context.Context, productID id.ID, batchNo string) (int64, error) {
	totals, err := c.agg.Aggregate(ctx, AggregateQuery{ProductID: productID, BatchNo: &batchNo})
	if err != nil {
		return 0, err
	}
	return totals.Net(), nil
}

// ProductStock sums BatchStock over every batch the product has in any ledger.
func (c *Calculator) ProductStock(ctx context.Context, productID id.ID) (int64, error) {
	refs, err := c.repo.ListBatches(ctx, &productID)
	if err != nil {
		return 0, fmt.Errorf("list batches: %w", err)
	}

	var total int64
	for _, ref := range refs {
		stock, err := c.BatchStock(ctx, productID, ref.BatchKey)
		if err != nil {
			return 0, fmt.Errorf("batch %s: %w", ref.BatchKey, err)
		}
		total += stock
	}
	return total, nil
}

// Classify returns the product's status and total stock.
// A negative threshold selects DefaultLowStockThreshold.
func (c *Calculator) Classify(ctx context.Context, productID id.ID, lowThreshold int64) (Status, int64, error) {
	if lowThreshold < 0 {
		lowThreshold = DefaultLowStockThreshold
	}
	stock, err := c.ProductStock(ctx, productID)
	if err != nil {
		return "", 0, err
	}
	return ClassifyStock(stock, lowThreshold), stock, nil
}

// Batches returns the breakdown of every batch of the product, ordered by
// expiry with unknown expiries last.
func (c *Calculator) Batches(ctx context.Context, productID id.ID) ([]BatchStock, error) {
	refs, err := c.repo.ListBatches(ctx, &productID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	batches := make([]BatchStock, 0, len(refs))
	for _, ref := range refs {
		totals, err := c.agg.Aggregate(ctx, AggregateQuery{ProductID: productID, BatchNo: &ref.BatchKey})
		if err != nil {
			return nil, fmt.Errorf("batch %s: %w", ref.BatchKey, err)
		}

		batches = append(batches, BatchStock{
			ProductID:  productID,
			BatchNo:    ref.BatchNo,
			Expiry:     ref.Expiry,
			ExpiryDate: c.resolveExpiry(ctx, ref),
			Totals:     totals,
			Stock:      totals.Net(),
		})
	}

	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i].ExpiryDate, batches[j].ExpiryDate
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(b.Time)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return ledger.NormalizeBatch(batches[i].BatchNo) < ledger.NormalizeBatch(batches[j].BatchNo)
	})

	return batches, nil
}

// StockSummary returns ledger totals plus the per-batch breakdown.
func (c *Calculator) StockSummary(ctx context.Context, productID id.ID) (*Summary, error) {
	exists, err := c.products.Exists(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return nil, apperror.NewProductNotFound(productID)
	}

	batches, err := c.Batches(ctx, productID)
	if err != nil {
		return nil, err
	}

	var totals Totals
	for _, b := range batches {
		totals = totals.Add(b.Totals)
	}

	return &Summary{
		ProductID:            productID,
		TotalPurchased:       totals.Purchased,
		TotalSold:            totals.Sold,
		TotalPurchaseReturns: totals.PurchaseReturns,
		TotalSalesReturns:    totals.SalesReturns,
		TotalStock:           totals.Net(),
		Batches:              batches,
	}, nil
}

// BatchStockStatus returns the batch's available quantity, optionally
// ignoring one sale row, and whether anything is available.
func (c *Calculator) BatchStockStatus(ctx context.Context, productID id.ID, batchNo string, excludeSaleID *id.ID) (int64, bool, error) {
	q := AggregateQuery{ProductID: productID, BatchNo: &batchNo}
	if excludeSaleID != nil {
		q.Exclude = &Exclusion{Kind: ledger.KindSale, RowID: *excludeSaleID}
	}

	totals, err := c.agg.Aggregate(ctx, q)
	if err != nil {
		return 0, false, err
	}
	available := totals.Net()
	return available, available > 0, nil
}

// ExpiringBatches lists batches with positive stock whose expiry is on or
// before asOf + windowDays, soonest first. Batches with an expiry no parser
// understands are logged and skipped.
func (c *Calculator) ExpiringBatches(ctx context.Context, windowDays int, asOf dates.Date) ([]ExpiringBatch, error) {
	if windowDays < 0 {
		windowDays = DefaultExpiryWindowDays
	}
	cutoff := asOf.AddDays(windowDays)

	refs, err := c.repo.ListBatches(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	result := make([]ExpiringBatch, 0)
	for _, ref := range refs {
		expiry := c.resolveExpiry(ctx, ref)
		if expiry == nil || expiry.After(cutoff.Time) {
			continue
		}

		stock, err := c.BatchStock(ctx, ref.ProductID, ref.BatchKey)
		if err != nil {
			return nil, fmt.Errorf("batch %s: %w", ref.BatchKey, err)
		}
		if stock <= 0 {
			continue
		}

		result = append(result, ExpiringBatch{
			ProductID:  ref.ProductID,
			BatchNo:    ref.BatchNo,
			Expiry:     ref.Expiry,
			ExpiryDate: *expiry,
			Stock:      stock,
			DaysLeft:   int(expiry.Sub(asOf.Time).Hours() / 24),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].ExpiryDate.Equal(result[j].ExpiryDate) {
			return result[i].ExpiryDate.Before(result[j].ExpiryDate.Time)
		}
		return ledger.NormalizeBatch(result[i].BatchNo) < ledger.NormalizeBatch(result[j].BatchNo)
	})

	return result, nil
}

func (c *Calculator) resolveExpiry(ctx context.Context, ref BatchRef) *dates.Date {
	if ref.Expiry == "" {
		return nil
	}
	d, err := c.dates.ParseExpiry(ref.Expiry)
	if err != nil {
		logger.Warn(ctx, "skipping unparseable batch expiry",
			"product_id", ref.ProductID,
			"batch_no", ref.BatchNo,
			"expiry", ref.Expiry,
			"error", err,
		)
		return nil
	}
	return d
}
