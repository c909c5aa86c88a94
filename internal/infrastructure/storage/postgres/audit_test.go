package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
)

func newChange(invoiceRef string) *stock.StockChange {
	entry := ledger.NewEntry(ledger.KindSale, id.New(), "B1", 3)
	entry.InvoiceRef = &invoiceRef
	return &stock.StockChange{
		ID:            id.New(),
		EntryID:       entry.ID,
		Kind:          ledger.KindSale,
		Action:        stock.ActionCreate,
		ProductID:     entry.ProductID,
		BatchNo:       "B1",
		Quantity:      3,
		PreviousStock: 10,
		NewStock:      7,
		UserID:        "u-1",
		Snapshot:      entry,
		CreatedAt:     time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
	}
}

func TestStockAudit_SnapshotCompression(t *testing.T) {
	audit, err := NewStockAudit(nil, 256)
	require.NoError(t, err)

	small := newChange("INV-1")
	row, err := audit.toRow(small)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, row.CompressionAlgo)
	assert.NotEmpty(t, row.Snapshot)
	assert.Empty(t, row.SnapshotCompressed)

	large := newChange(strings.Repeat("INV-", 200))
	row, err = audit.toRow(large)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, row.CompressionAlgo)
	assert.Empty(t, row.Snapshot)
	assert.Less(t, len(row.SnapshotCompressed), 800)

	back, err := audit.fromRow(row)
	require.NoError(t, err)
	require.NotNil(t, back.Snapshot)
	assert.Equal(t, *large.Snapshot.InvoiceRef, *back.Snapshot.InvoiceRef)
	assert.Equal(t, large.Snapshot.ID, back.Snapshot.ID)
	assert.Equal(t, ledger.KindSale, back.Kind)
	assert.Equal(t, int64(7), back.NewStock)
}

func TestStockAudit_NoSnapshot(t *testing.T) {
	audit, err := NewStockAudit(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompressThreshold, audit.compressThreshold)

	change := newChange("INV-2")
	change.Snapshot = nil
	change.ID = id.Nil()

	row, err := audit.toRow(change)
	require.NoError(t, err)
	assert.False(t, id.IsNil(row.ID))
	assert.Nil(t, row.Snapshot)

	back, err := audit.fromRow(row)
	require.NoError(t, err)
	assert.Nil(t, back.Snapshot)
}
