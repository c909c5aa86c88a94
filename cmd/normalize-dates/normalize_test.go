package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pharmastock/internal/core/dates"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/pkg/logger"
)

type memDates struct {
	rows    map[ledger.Kind][]ledger.DateFields
	updates map[id.ID]ledger.DateFields
	failOn  id.ID
}

func newMemDates() *memDates {
	return &memDates{
		rows:    make(map[ledger.Kind][]ledger.DateFields),
		updates: make(map[id.ID]ledger.DateFields),
	}
}

func (m *memDates) add(kind ledger.Kind, expiry string, entryDate *string) id.ID {
	rowID := id.New()
	m.rows[kind] = append(m.rows[kind], ledger.DateFields{ID: rowID, Expiry: expiry, EntryDate: entryDate})
	return rowID
}

func (m *memDates) ListDateFields(_ context.Context, kind ledger.Kind) ([]ledger.DateFields, error) {
	return m.rows[kind], nil
}

func (m *memDates) UpdateDateFields(_ context.Context, _ ledger.Kind, row ledger.DateFields) error {
	if row.ID == m.failOn {
		return errors.New("connection lost")
	}
	m.updates[row.ID] = row
	return nil
}

type countingTx struct {
	calls int
	err   error
}

func (c *countingTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	c.calls++
	c.err = fn(ctx)
	return c.err
}

func strPtr(s string) *string { return &s }

func newConverter(store DateStore, txm *countingTx) (*Converter, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	clock := func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	return NewConverter(store, txm, dates.NewWithClock(clock), log), logs
}

func TestConverter_RewritesLegacyDates(t *testing.T) {
	store := newMemDates()
	purchase := store.add(ledger.KindPurchase, "31122027", strPtr("15/01/2024"))
	sale := store.add(ledger.KindSale, "2027-06-15", strPtr("2026-10-16"))
	canonical := store.add(ledger.KindSale, "06-2027", strPtr("2026-10-16"))
	ret := store.add(ledger.KindSalesReturn, "0627", nil)
	slashed := store.add(ledger.KindPurchaseReturn, "15/06/2027", strPtr("05012026"))

	txm := &countingTx{}
	c, _ := newConverter(store, txm)
	results, err := c.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, txm.calls)
	require.Len(t, results, len(ledger.Kinds))

	assert.Equal(t, ledger.DateFields{ID: purchase, Expiry: "12-2027", EntryDate: strPtr("2024-01-15")}, store.updates[purchase])
	assert.Equal(t, "06-2027", store.updates[sale].Expiry)
	assert.Equal(t, "06-2027", store.updates[ret].Expiry)
	assert.Nil(t, store.updates[ret].EntryDate)
	assert.Equal(t, ledger.DateFields{ID: slashed, Expiry: "06-2027", EntryDate: strPtr("2026-01-05")}, store.updates[slashed])
	assert.NotContains(t, store.updates, canonical)

	byKind := make(map[ledger.Kind]Result)
	for _, res := range results {
		byKind[res.Kind] = res
	}
	assert.Equal(t, Result{Kind: ledger.KindSale, Scanned: 2, Converted: 1}, byKind[ledger.KindSale])
	assert.Equal(t, Result{Kind: ledger.KindPurchaseReturn, Scanned: 1, Converted: 1}, byKind[ledger.KindPurchaseReturn])
}

func TestConverter_DryRunWritesNothing(t *testing.T) {
	store := newMemDates()
	store.add(ledger.KindPurchase, "15/01/2027", nil)

	txm := &countingTx{}
	c, logs := newConverter(store, txm)
	results, err := c.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Empty(t, store.updates)
	assert.ErrorIs(t, txm.err, errDryRun, "the transaction is rolled back")
	assert.Equal(t, 1, results[0].Converted)

	converted := logs.FilterMessage("date fields converted").All()
	require.Len(t, converted, 1)
	assert.Equal(t, "01-2027", converted[0].ContextMap()["expiry_to"])
	assert.Equal(t, true, converted[0].ContextMap()["dry_run"])
}

func TestConverter_ReportsUnparseableRows(t *testing.T) {
	store := newMemDates()
	bad := store.add(ledger.KindSale, "sometime", strPtr("2026-10-16"))
	badDate := store.add(ledger.KindPurchase, "06-2027", strPtr("yesterday"))
	farFuture := store.add(ledger.KindSalesReturn, "2150-12-31", nil)

	c, logs := newConverter(store, &countingTx{})
	results, err := c.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Empty(t, store.updates)
	total := 0
	for _, res := range results {
		total += res.Unparseable
	}
	assert.Equal(t, 3, total)

	warned := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warned, 3)
	ids := make([]string, 0, len(warned))
	for _, entry := range warned {
		ids = append(ids, fmt.Sprint(entry.ContextMap()["id"]))
	}
	assert.ElementsMatch(t, []string{bad.String(), badDate.String(), farFuture.String()}, ids)
}

func TestConverter_UpdateFailureAbortsRun(t *testing.T) {
	store := newMemDates()
	store.failOn = store.add(ledger.KindPurchase, "31122027", nil)

	txm := &countingTx{}
	c, _ := newConverter(store, txm)
	_, err := c.Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	assert.Equal(t, txm.err, err)
}
