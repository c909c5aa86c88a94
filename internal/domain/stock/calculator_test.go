package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
	"pharmastock/internal/domain/stock/stocktest"
)

var testNow = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestScenario_SingleBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p1 := e.Store.AddProduct("Paracetamol 500mg")

	purchase := ledger.NewEntry(ledger.KindPurchase, p1, "B1", 100)
	purchase.Expiry = "12-2025"
	_, err := e.Service.RecordPurchase(ctx, purchase)
	require.NoError(t, err)

	stockLevel, err := e.Calculator.BatchStock(ctx, p1, "B1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stockLevel)

	status, _, err := e.Calculator.Classify(ctx, p1, stock.DefaultLowStockThreshold)
	require.NoError(t, err)
	assert.Equal(t, stock.StatusInStock, status)

	change, err := e.Service.RecordSale(ctx, ledger.NewEntry(ledger.KindSale, p1, "B1", 95))
	require.NoError(t, err)
	assert.Equal(t, int64(100), change.PreviousStock)
	assert.Equal(t, int64(5), change.NewStock)

	status, total, err := e.Calculator.Classify(ctx, p1, stock.DefaultLowStockThreshold)
	require.NoError(t, err)
	assert.Equal(t, stock.StatusLowStock, status)
	assert.Equal(t, int64(5), total)

	res := e.Validator.ValidateSale(ctx, p1, "B1", 10, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, int64(5), res.AvailableStock)
	assert.Equal(t, int64(5), res.Shortfall)
	assert.Equal(t, stock.ReasonInsufficientStock, res.Reason())

	_, err = e.Service.RecordSale(ctx, ledger.NewEntry(ledger.KindSale, p1, "B1", 10))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	out, err := e.Service.RecordPurchaseReturn(ctx, ledger.NewEntry(ledger.KindPurchaseReturn, p1, "B1", 3))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, int64(5), out.PreviousStock)
	assert.Equal(t, int64(2), out.NewStock)
	assert.Equal(t, int64(-3), out.StockImpact)

	out, err = e.Service.RecordSalesReturn(ctx, ledger.NewEntry(ledger.KindSalesReturn, p1, "B1", 4))
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.PreviousStock)
	assert.Equal(t, int64(6), out.NewStock)

	stockLevel, err = e.Calculator.BatchStock(ctx, p1, "B1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), stockLevel)
}

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		stock int64
		want  stock.Status
	}{
		{-3, stock.StatusOutOfStock},
		{0, stock.StatusOutOfStock},
		{1, stock.StatusLowStock},
		{10, stock.StatusLowStock},
		{11, stock.StatusInStock},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stock.ClassifyStock(tt.stock, 10), "stock %d", tt.stock)
	}
}

func TestAggregate_BatchNormalizationAndAdditivity(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Amoxicillin")

	e.Store.AddRow(ledger.KindPurchase, p, "B2", "03-2027", 10)
	e.Store.AddRow(ledger.KindPurchase, p, "B1", "01-2027", 20)
	e.Store.AddRow(ledger.KindSale, p, " b1 ", "", 5)
	e.Store.AddRow(ledger.KindSalesReturn, p, "X9", "", 2)

	totals, err := e.Aggregator.Aggregate(ctx, stock.AggregateQuery{ProductID: p, BatchNo: ptr("B1")})
	require.NoError(t, err)
	assert.Equal(t, stock.Totals{Purchased: 20, Sold: 5}, totals)

	productTotals, err := e.Aggregator.Aggregate(ctx, stock.AggregateQuery{ProductID: p})
	require.NoError(t, err)
	assert.Equal(t, int64(27), productTotals.Net())

	productStock, err := e.Calculator.ProductStock(ctx, p)
	require.NoError(t, err)

	batches, err := e.Calculator.Batches(ctx, p)
	require.NoError(t, err)
	var sum int64
	for _, b := range batches {
		sum += b.Stock
	}
	assert.Equal(t, productStock, sum)
	assert.Equal(t, productTotals.Net(), productStock)
}

func TestAggregate_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Cetirizine")
	e.Store.AddRow(ledger.KindPurchase, p, "C1", "", 40)
	e.Store.AddRow(ledger.KindSale, p, "C1", "", 12)

	q := stock.AggregateQuery{ProductID: p, BatchNo: ptr("C1")}
	first, err := e.Aggregator.Aggregate(ctx, q)
	require.NoError(t, err)
	second, err := e.Aggregator.Aggregate(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregate_Exclusion(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Ibuprofen")
	e.Store.AddRow(ledger.KindPurchase, p, "I1", "", 50)
	e.Store.AddRow(ledger.KindSale, p, "I1", "", 7)
	excluded := e.Store.AddRow(ledger.KindSale, p, "I1", "", 11)
	e.Store.AddRow(ledger.KindPurchaseReturn, p, "I1", "", 2)

	with, err := e.Aggregator.Aggregate(ctx, stock.AggregateQuery{ProductID: p, BatchNo: ptr("I1")})
	require.NoError(t, err)

	without, err := e.Aggregator.Aggregate(ctx, stock.AggregateQuery{
		ProductID: p,
		BatchNo:   ptr("I1"),
		Exclude:   &stock.Exclusion{Kind: ledger.KindSale, RowID: excluded.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, with.Sold-excluded.Quantity, without.Sold)
	assert.Equal(t, with.Purchased, without.Purchased)
	assert.Equal(t, with.PurchaseReturns, without.PurchaseReturns)
	assert.Equal(t, with.SalesReturns, without.SalesReturns)

	// Excluding a sale ID from the purchase ledger changes nothing.
	other, err := e.Aggregator.Aggregate(ctx, stock.AggregateQuery{
		ProductID: p,
		BatchNo:   ptr("I1"),
		Exclude:   &stock.Exclusion{Kind: ledger.KindPurchase, RowID: excluded.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, with, other)
}

func TestAggregate_UnknownExclusionKind(t *testing.T) {
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Ibuprofen")

	_, err := e.Aggregator.Aggregate(context.Background(), stock.AggregateQuery{
		ProductID: p,
		Exclude:   &stock.Exclusion{Kind: "transfer", RowID: id.New()},
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestAggregate_EmptyLedgerIsZero(t *testing.T) {
	e := stocktest.NewEngine(testNow)
	totals, err := e.Aggregator.Aggregate(context.Background(), stock.AggregateQuery{ProductID: id.New()})
	require.NoError(t, err)
	assert.Equal(t, stock.Totals{}, totals)
}

func TestStockSummary(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Amoxicillin")

	e.Store.AddRow(ledger.KindPurchase, p, "B2", "03-2027", 10)
	e.Store.AddRow(ledger.KindPurchase, p, "B1", "01-2027", 20)
	e.Store.AddRow(ledger.KindSale, p, "b1", "", 5)
	e.Store.AddRow(ledger.KindSalesReturn, p, "X9", "", 2)

	summary, err := e.Calculator.StockSummary(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, int64(30), summary.TotalPurchased)
	assert.Equal(t, int64(5), summary.TotalSold)
	assert.Equal(t, int64(0), summary.TotalPurchaseReturns)
	assert.Equal(t, int64(2), summary.TotalSalesReturns)
	assert.Equal(t, int64(27), summary.TotalStock)

	require.Len(t, summary.Batches, 3)
	assert.Equal(t, "B1", summary.Batches[0].BatchNo)
	assert.Equal(t, int64(15), summary.Batches[0].Stock)
	assert.Equal(t, "2027-01-31", summary.Batches[0].ExpiryDate.FormatStorage())
	assert.Equal(t, "B2", summary.Batches[1].BatchNo)
	assert.Equal(t, "X9", summary.Batches[2].BatchNo)
	assert.Nil(t, summary.Batches[2].ExpiryDate)
}

func TestStockSummary_UnknownProduct(t *testing.T) {
	e := stocktest.NewEngine(testNow)
	_, err := e.Calculator.StockSummary(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))
}

func TestBatchStockStatus(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Metformin")
	e.Store.AddRow(ledger.KindPurchase, p, "M1", "", 10)
	sale := e.Store.AddRow(ledger.KindSale, p, "M1", "", 10)

	available, ok, err := e.Calculator.BatchStockStatus(ctx, p, "M1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)
	assert.False(t, ok)

	available, ok, err = e.Calculator.BatchStockStatus(ctx, p, "m1", &sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), available)
	assert.True(t, ok)
}

func TestExpiringBatches(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Insulin")

	e.Store.AddRow(ledger.KindPurchase, p, "B-OCT", "10-2026", 10)
	e.Store.AddRow(ledger.KindPurchase, p, "B-NOV", "11-2026", 5)
	e.Store.AddRow(ledger.KindPurchase, p, "B-SEP", "09-2026", 4)
	e.Store.AddRow(ledger.KindPurchase, p, "B-USED", "10-2026", 3)
	e.Store.AddRow(ledger.KindSale, p, "B-USED", "", 3)
	e.Store.AddRow(ledger.KindPurchase, p, "B-BAD", "garbage", 7)
	e.Store.AddRow(ledger.KindPurchase, p, "B-NONE", "", 7)

	batches, err := e.Calculator.ExpiringBatches(ctx, 30, e.Dates.Today())
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, "B-SEP", batches[0].BatchNo)
	assert.Equal(t, "2026-09-30", batches[0].ExpiryDate.FormatStorage())
	assert.Equal(t, -16, batches[0].DaysLeft)
	assert.Equal(t, int64(4), batches[0].Stock)

	assert.Equal(t, "B-OCT", batches[1].BatchNo)
	assert.Equal(t, 15, batches[1].DaysLeft)
}
