// Package stocktest provides in-memory implementations of the product, ledger
// and stock repositories. Use in unit tests to avoid database dependencies.
package stocktest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/dates"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/tx"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/product"
	"pharmastock/internal/domain/stock"
)

// MemProducts keeps products in memory.
type MemProducts struct {
	mu       sync.Mutex
	products map[id.ID]*product.Product
}

// NewMemProducts creates an empty product store.
func NewMemProducts() *MemProducts {
	return &MemProducts{products: make(map[id.ID]*product.Product)}
}

// MemStore keeps ledger rows in memory next to a MemProducts catalog.
type MemStore struct {
	*MemProducts

	mu   sync.Mutex
	rows map[ledger.Kind][]*ledger.Entry

	// SumErr, when set, is returned by every SumQuantities call.
	SumErr error
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		MemProducts: NewMemProducts(),
		rows:        make(map[ledger.Kind][]*ledger.Entry),
	}
}

// AddProduct stores a product with the given name and returns its ID.
func (m *MemProducts) AddProduct(name string) id.ID {
	p := product.NewProduct(name)
	_ = m.Create(context.Background(), p)
	return p.ID
}

// AddRow stores a ledger row directly, bypassing validation.
func (m *MemStore) AddRow(kind ledger.Kind, productID id.ID, batchNo, expiry string, quantity int64) *ledger.Entry {
	e := ledger.NewEntry(kind, productID, batchNo, quantity)
	e.Expiry = expiry
	_ = m.Insert(context.Background(), e)
	return e
}

// --- product.Repository ---

func (m *MemProducts) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemProducts) Update(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return apperror.NewProductNotFound(p.ID)
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemProducts) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, apperror.NewProductNotFound(productID)
	}
	cp := *p
	return &cp, nil
}

func (m *MemProducts) FindByBarcode(_ context.Context, barcode string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Barcode != nil && *p.Barcode == barcode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("product", barcode)
}

func (m *MemProducts) Exists(_ context.Context, productID id.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.products[productID]
	return ok, nil
}

func (m *MemProducts) List(ctx context.Context, filter product.ListFilter) ([]*product.Product, int, error) {
	all, _ := m.ListAll(ctx)
	matched := make([]*product.Product, 0, len(all))
	for _, p := range all {
		if filter.Search == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			matched = append(matched, p)
		}
	}
	total := len(matched)
	if filter.Offset >= total {
		return []*product.Product{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (m *MemProducts) ListAll(_ context.Context) ([]*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*product.Product, 0, len(m.products))
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- ledger.Repository ---

func (m *MemStore) Insert(_ context.Context, e *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.rows[e.Kind] = append(m.rows[e.Kind], &cp)
	return nil
}

func (m *MemStore) BulkInsert(ctx context.Context, kind ledger.Kind, entries []*ledger.Entry) (int64, error) {
	for _, e := range entries {
		e.Kind = kind
		if err := m.Insert(ctx, e); err != nil {
			return 0, err
		}
	}
	return int64(len(entries)), nil
}

func (m *MemStore) Get(_ context.Context, kind ledger.Kind, entryID id.ID) (*ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows[kind] {
		if e.ID == entryID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound(string(kind), entryID)
}

func (m *MemStore) Update(_ context.Context, e *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows[e.Kind] {
		if row.ID == e.ID {
			cp := *e
			m.rows[e.Kind][i] = &cp
			return nil
		}
	}
	return apperror.NewNotFound(string(e.Kind), e.ID)
}

func (m *MemStore) Delete(_ context.Context, kind ledger.Kind, entryID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[kind]
	for i, row := range rows {
		if row.ID == entryID {
			m.rows[kind] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound(string(kind), entryID)
}

// --- stock.Repository ---

func (m *MemStore) SumQuantities(_ context.Context, kind ledger.Kind, filter stock.SumFilter) (int64, error) {
	if m.SumErr != nil {
		return 0, m.SumErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, e := range m.rows[kind] {
		if e.ProductID != filter.ProductID {
			continue
		}
		if filter.BatchKey != nil && e.BatchKey() != *filter.BatchKey {
			continue
		}
		if filter.ExcludeID != nil && e.ID == *filter.ExcludeID {
			continue
		}
		total += e.Quantity
	}
	return total, nil
}

func (m *MemStore) ListBatches(_ context.Context, productID *id.ID) ([]stock.BatchRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type key struct {
		productID id.ID
		batchKey  string
	}
	index := make(map[key]int)
	refs := make([]stock.BatchRef, 0)

	for _, kind := range ledger.Kinds {
		for _, e := range m.rows[kind] {
			if productID != nil && e.ProductID != *productID {
				continue
			}
			k := key{productID: e.ProductID, batchKey: e.BatchKey()}
			i, ok := index[k]
			if !ok {
				refs = append(refs, stock.BatchRef{ProductID: e.ProductID, BatchKey: k.batchKey, BatchNo: e.BatchNo})
				i = len(refs) - 1
				index[k] = i
			}
			if kind == ledger.KindPurchase && refs[i].Expiry == "" && e.Expiry != "" {
				refs[i].Expiry = e.Expiry
			}
		}
	}
	return refs, nil
}

func (m *MemStore) PurchaseMRPs(_ context.Context, productID id.ID) ([]types.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Money, 0)
	for _, e := range m.rows[ledger.KindPurchase] {
		if e.ProductID == productID {
			out = append(out, e.MRP)
		}
	}
	return out, nil
}

// MemLocker records LockBatch calls.
type MemLocker struct {
	mu    sync.Mutex
	Calls []string
}

func (l *MemLocker) LockBatch(_ context.Context, productID id.ID, batchKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, productID.String()+"/"+batchKey)
	return nil
}

// MemAudit keeps stock changes in memory.
type MemAudit struct {
	mu      sync.Mutex
	Changes []stock.StockChange
}

func (a *MemAudit) RecordStockChange(_ context.Context, change *stock.StockChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Changes = append(a.Changes, *change)
	return nil
}

func (a *MemAudit) History(_ context.Context, kind ledger.Kind, entryID id.ID, limit int) ([]stock.StockChange, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]stock.StockChange, 0)
	for i := len(a.Changes) - 1; i >= 0 && len(out) < limit; i-- {
		c := a.Changes[i]
		if c.Kind == kind && c.EntryID == entryID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Engine bundles a fully wired stock engine over a MemStore.
type Engine struct {
	Store      *MemStore
	Locker     *MemLocker
	Audit      *MemAudit
	Dates      *dates.Normalizer
	Aggregator *stock.Aggregator
	Calculator *stock.Calculator
	Validator  *stock.Validator
	Processor  *stock.Processor
	Service    *stock.Service
}

// NewEngine wires an engine whose "today" is fixed at now.
func NewEngine(now time.Time) *Engine {
	store := NewMemStore()
	normalizer := dates.NewWithClock(func() time.Time { return now })
	agg := stock.NewAggregator(store)
	calc := stock.NewCalculator(agg, store, store, normalizer)
	validator := stock.NewValidator(agg, store, store)
	processor := stock.NewProcessor(agg, store)
	locker := &MemLocker{}
	audit := &MemAudit{}

	svc := stock.NewService(stock.ServiceConfig{
		TxManager:  tx.Nop{},
		Ledger:     store,
		Locker:     locker,
		Products:   store,
		Validator:  validator,
		Processor:  processor,
		Calculator: calc,
		Dates:      normalizer,
		Audit:      audit,
	})

	return &Engine{
		Store:      store,
		Locker:     locker,
		Audit:      audit,
		Dates:      normalizer,
		Aggregator: agg,
		Calculator: calc,
		Validator:  validator,
		Processor:  processor,
		Service:    svc,
	}
}

var (
	_ product.Repository = (*MemProducts)(nil)
	_ ledger.Repository  = (*MemStore)(nil)
	_ stock.Repository   = (*MemStore)(nil)
	_ stock.BatchLocker  = (*MemLocker)(nil)
	_ stock.AuditTrail   = (*MemAudit)(nil)
)
