package stock_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	appctx "pharmastock/internal/core/context"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
	"pharmastock/internal/domain/stock/stocktest"
)

func TestService_NeverNegativeUnderSerializedWrites(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Serialized")
	batches := []string{"B1", " b1", "B1 "}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 400; i++ {
		qty := int64(rng.Intn(20) + 1)
		batch := batches[rng.Intn(len(batches))]

		switch rng.Intn(4) {
		case 0:
			_, err := e.Service.RecordPurchase(ctx, ledger.NewEntry(ledger.KindPurchase, p, batch, qty))
			require.NoError(t, err)
		case 1:
			_, _ = e.Service.RecordSale(ctx, ledger.NewEntry(ledger.KindSale, p, batch, qty))
		case 2:
			_, _ = e.Service.RecordPurchaseReturn(ctx, ledger.NewEntry(ledger.KindPurchaseReturn, p, batch, qty))
		case 3:
			_, _ = e.Service.RecordSalesReturn(ctx, ledger.NewEntry(ledger.KindSalesReturn, p, batch, qty))
		}

		level, err := e.Calculator.BatchStock(ctx, p, "B1")
		require.NoError(t, err)
		require.GreaterOrEqual(t, level, int64(0), "step %d", i)
	}
}

func TestService_RecordPurchase_NormalizesExpiry(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Expiry")

	entry := ledger.NewEntry(ledger.KindPurchase, p, " e1 ", 10)
	entry.Expiry = "30062027"
	entry.EntryDate = ptr("15102026")
	change, err := e.Service.RecordPurchase(ctx, entry)
	require.NoError(t, err)

	stored, err := e.Store.Get(ctx, ledger.KindPurchase, change.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "06-2027", stored.Expiry)
	assert.Equal(t, "E1", stored.BatchKey())
	require.NotNil(t, stored.EntryDate)
	assert.Equal(t, "2026-10-15", *stored.EntryDate)
}

func TestService_RecordPurchase_Rejections(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Rejected")

	bad := ledger.NewEntry(ledger.KindPurchase, p, "R1", 10)
	bad.Expiry = "13-2026"
	_, err := e.Service.RecordPurchase(ctx, bad)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "expiry", appErr.Details["field"])

	_, err = e.Service.RecordPurchase(ctx, ledger.NewEntry(ledger.KindPurchase, id.New(), "R1", 10))
	assert.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))

	_, err = e.Service.RecordPurchase(ctx, ledger.NewEntry(ledger.KindPurchase, p, "R1", 0))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))
}

func TestService_RecordsAuditTrailAndUser(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "pharmacist-7"})
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Audited")

	change, err := e.Service.RecordPurchase(ctx, ledger.NewEntry(ledger.KindPurchase, p, "A1", 12))
	require.NoError(t, err)
	assert.Equal(t, "pharmacist-7", change.UserID)
	require.NotNil(t, change.Snapshot)
	require.NotNil(t, change.Snapshot.CreatedBy)
	assert.Equal(t, "pharmacist-7", *change.Snapshot.CreatedBy)

	history, err := e.Service.History(ctx, ledger.KindPurchase, change.EntryID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, stock.ActionCreate, history[0].Action)
	assert.Equal(t, int64(0), history[0].PreviousStock)
	assert.Equal(t, int64(12), history[0].NewStock)
}

func TestService_RejectedReturnIsNotStored(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Returns")
	e.Store.AddRow(ledger.KindPurchase, p, "R1", "", 5)

	entry := ledger.NewEntry(ledger.KindPurchaseReturn, p, "R1", 6)
	_, err := e.Service.RecordPurchaseReturn(ctx, entry)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	_, err = e.Store.Get(ctx, ledger.KindPurchaseReturn, entry.ID)
	assert.True(t, apperror.IsNotFound(err))

	entry = ledger.NewEntry(ledger.KindSalesReturn, p, "NOPE", 1)
	_, err = e.Service.RecordSalesReturn(ctx, entry)
	assert.True(t, apperror.HasCode(err, apperror.CodeBatchNotFound))
}

func TestService_UpdateSale(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Edited")
	e.Store.AddRow(ledger.KindPurchase, p, "B1", "", 100)
	e.Store.AddRow(ledger.KindPurchase, p, "B2", "", 20)
	sale := e.Store.AddRow(ledger.KindSale, p, "B2", "", 10)

	change, err := e.Service.UpdateSale(ctx, sale.ID, ledger.NewEntry(ledger.KindSale, p, "B1", 90))
	require.NoError(t, err)
	assert.Equal(t, stock.ActionUpdate, change.Action)
	assert.Equal(t, int64(100), change.PreviousStock)
	assert.Equal(t, int64(10), change.NewStock)

	b2, err := e.Calculator.BatchStock(ctx, p, "B2")
	require.NoError(t, err)
	assert.Equal(t, int64(20), b2)

	calls := e.Locker.Calls
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{p.String() + "/B1", p.String() + "/B2"}, calls[len(calls)-2:])

	_, err = e.Service.UpdateSale(ctx, sale.ID, ledger.NewEntry(ledger.KindSale, p, "B1", 101))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	_, err = e.Service.UpdateSale(ctx, id.New(), ledger.NewEntry(ledger.KindSale, p, "B1", 1))
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_DeleteEntry(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Deleted")
	purchase := e.Store.AddRow(ledger.KindPurchase, p, "D1", "", 10)
	sale := e.Store.AddRow(ledger.KindSale, p, "D1", "", 8)

	_, err := e.Service.DeleteEntry(ctx, ledger.KindPurchase, purchase.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	change, err := e.Service.DeleteEntry(ctx, ledger.KindSale, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), change.PreviousStock)
	assert.Equal(t, int64(10), change.NewStock)

	change, err = e.Service.DeleteEntry(ctx, ledger.KindPurchase, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), change.NewStock)

	_, err = e.Service.DeleteEntry(ctx, ledger.KindSale, sale.ID)
	assert.True(t, apperror.IsNotFound(err))

	_, err = e.Service.DeleteEntry(ctx, "transfer", sale.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_BulkImportPurchases(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Bulk")

	rows := []*ledger.Entry{
		ledger.NewEntry(ledger.KindPurchase, p, "K1", 10),
		ledger.NewEntry(ledger.KindPurchase, p, "k1", 5),
		ledger.NewEntry(ledger.KindPurchase, p, "K2", 7),
	}
	n, err := e.Service.BulkImportPurchases(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	level, err := e.Calculator.BatchStock(ctx, p, "K1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), level)

	_, err = e.Service.BulkImportPurchases(ctx, []*ledger.Entry{
		ledger.NewEntry(ledger.KindPurchase, p, "K3", 1),
		ledger.NewEntry(ledger.KindPurchase, p, "K3", 0),
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidQuantity, appErr.Code)
	assert.Equal(t, 2, appErr.Details["row"])

	_, err = e.Service.BulkImportPurchases(ctx, []*ledger.Entry{
		ledger.NewEntry(ledger.KindPurchase, id.New(), "K3", 1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))

	_, err = e.Service.BulkImportPurchases(ctx, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestProcessor_ReportsStockAroundStoredReturn(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Processed")
	e.Store.AddRow(ledger.KindPurchase, p, "P1", "", 10)
	pr := e.Store.AddRow(ledger.KindPurchaseReturn, p, "P1", "", 4)
	sr := e.Store.AddRow(ledger.KindSalesReturn, p, "P1", "", 1)

	out := e.Processor.ProcessPurchaseReturn(ctx, pr)
	assert.True(t, out.Success)
	assert.Equal(t, int64(11), out.PreviousStock)
	assert.Equal(t, int64(7), out.NewStock)
	assert.Contains(t, out.Message, "Processed (Batch: P1) stock reduced from 11 to 7 units")

	out = e.Processor.ProcessSalesReturn(ctx, sr)
	assert.True(t, out.Success)
	assert.Equal(t, int64(6), out.PreviousStock)
	assert.Equal(t, int64(7), out.NewStock)
	assert.Equal(t, int64(1), out.StockImpact)

	orphan := e.Store.AddRow(ledger.KindSalesReturn, p, "P9", "", 1)
	out = e.Processor.ProcessSalesReturn(ctx, orphan)
	assert.False(t, out.Success)
	assert.Equal(t, stock.ReasonBatchNotFound, out.ErrorType)
	assert.True(t, apperror.HasCode(out.AppError(), apperror.CodeBatchNotFound))
}

func TestProcessor_ChecksQuantityBeforeStock(t *testing.T) {
	ctx := context.Background()
	e := stocktest.NewEngine(testNow)
	p := e.Store.AddProduct("Oversold")
	e.Store.AddRow(ledger.KindPurchase, p, "N1", "", 2)
	e.Store.AddRow(ledger.KindSale, p, "N1", "", 5)
	pr := e.Store.AddRow(ledger.KindPurchaseReturn, p, "N1", "", 0)

	out := e.Processor.ProcessPurchaseReturn(ctx, pr)
	assert.False(t, out.Success)
	assert.Equal(t, stock.ReasonInvalidQuantity, out.ErrorType)
	assert.Equal(t, "Invalid return quantity: 0. Quantity must be positive.", out.Message)
	assert.True(t, apperror.HasCode(out.AppError(), apperror.CodeInvalidQuantity))
}
