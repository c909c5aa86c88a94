package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pharmastock/internal/core/apperror"
	appctx "pharmastock/internal/core/context"
	"pharmastock/internal/core/dates"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/tx"
	"pharmastock/internal/domain/ledger"
	"pharmastock/pkg/logger"
)

// BatchLocker serializes writers of one (product, batch) until the current
// transaction ends.
type BatchLocker interface {
	LockBatch(ctx context.Context, productID id.ID, batchKey string) error
}

// Action is what happened to a ledger row.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// StockChange is one record of the stock audit trail.
type StockChange struct {
	ID            id.ID       `json:"id"`
	EntryID       id.ID       `json:"entryId"`
	Kind          ledger.Kind `json:"kind"`
	Action        Action      `json:"action"`
	ProductID     id.ID       `json:"productId"`
	BatchNo       string      `json:"batchNo"`
	Quantity      int64       `json:"quantity"`
	PreviousStock int64       `json:"previousStock"`
	NewStock      int64       `json:"newStock"`
	UserID        string      `json:"userId,omitempty"`

	// Snapshot is the row after create/update, or before delete.
	Snapshot *ledger.Entry `json:"snapshot,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// AuditTrail stores stock changes.
type AuditTrail interface {
	RecordStockChange(ctx context.Context, change *StockChange) error
	History(ctx context.Context, kind ledger.Kind, entryID id.ID, limit int) ([]StockChange, error)
}

// ServiceConfig wires the stock service.
type ServiceConfig struct {
	TxManager  tx.Manager
	Ledger     ledger.Repository
	Locker     BatchLocker
	Products   ProductCatalog
	Validator  *Validator
	Processor  *Processor
	Calculator *Calculator
	Dates      *dates.Normalizer
	Audit      AuditTrail
}

// Service records ledger mutations. Each mutation locks the affected batches,
// validates and writes inside one transaction.
type Service struct {
	txManager tx.Manager
	ledger    ledger.Repository
	locker    BatchLocker
	products  ProductCatalog
	validator *Validator
	processor *Processor
	calc      *Calculator
	dates     *dates.Normalizer
	audit     AuditTrail
}

// NewService creates a new stock service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		txManager: cfg.TxManager,
		ledger:    cfg.Ledger,
		locker:    cfg.Locker,
		products:  cfg.Products,
		validator: cfg.Validator,
		processor: cfg.Processor,
		calc:      cfg.Calculator,
		dates:     cfg.Dates,
		audit:     cfg.Audit,
	}
}

// RecordPurchase stores a purchase row.
func (s *Service) RecordPurchase(ctx context.Context, e *ledger.Entry) (*StockChange, error) {
	if err := s.prepare(ctx, ledger.KindPurchase, e); err != nil {
		return nil, err
	}

	var change *StockChange
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, e); err != nil {
			return err
		}
		if err := s.requireProduct(ctx, e.ProductID); err != nil {
			return err
		}

		before, err := s.calc.BatchStock(ctx, e.ProductID, e.BatchNo)
		if err != nil {
			return err
		}
		if err := s.ledger.Insert(ctx, e); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}

		change = s.newChange(ctx, ActionCreate, e, before, before+e.Quantity)
		return s.record(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.logChange(ctx, change)
	return change, nil
}

// RecordSale stores a sale row if the batch holds enough stock.
func (s *Service) RecordSale(ctx context.Context, e *ledger.Entry) (*StockChange, error) {
	if err := s.prepare(ctx, ledger.KindSale, e); err != nil {
		return nil, err
	}

	var change *StockChange
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, e); err != nil {
			return err
		}

		res := s.validator.ValidateSale(ctx, e.ProductID, e.BatchNo, e.Quantity, nil)
		if !res.Valid {
			return res.Err()
		}
		if err := s.ledger.Insert(ctx, e); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		change = s.newChange(ctx, ActionCreate, e, res.AvailableStock, res.AvailableStock-e.Quantity)
		return s.record(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.logChange(ctx, change)
	return change, nil
}

// UpdateSale overwrites an existing sale in place.
func (s *Service) UpdateSale(ctx context.Context, saleID id.ID, e *ledger.Entry) (*StockChange, error) {
	e.ID = saleID
	if err := s.prepare(ctx, ledger.KindSale, e); err != nil {
		return nil, err
	}

	var change *StockChange
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		old, err := s.ledger.Get(ctx, ledger.KindSale, saleID)
		if err != nil {
			return err
		}
		if err := s.lock(ctx, old, e); err != nil {
			return err
		}

		res := s.validator.ValidateEditSale(ctx, saleID, e.ProductID, e.BatchNo, e.Quantity)
		if !res.Valid {
			return res.Err()
		}

		before, err := s.calc.BatchStock(ctx, e.ProductID, e.BatchNo)
		if err != nil {
			return err
		}

		e.CreatedAt = old.CreatedAt
		e.CreatedBy = old.CreatedBy
		if err := s.ledger.Update(ctx, e); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}

		after, err := s.calc.BatchStock(ctx, e.ProductID, e.BatchNo)
		if err != nil {
			return err
		}

		change = s.newChange(ctx, ActionUpdate, e, before, after)
		return s.record(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.logChange(ctx, change)
	return change, nil
}

// RecordPurchaseReturn validates and stores a return to the supplier.
func (s *Service) RecordPurchaseReturn(ctx context.Context, e *ledger.Entry) (ReturnOutcome, error) {
	return s.recordReturn(ctx, ledger.KindPurchaseReturn, e)
}

// RecordSalesReturn validates and stores a return from a customer.
func (s *Service) RecordSalesReturn(ctx context.Context, e *ledger.Entry) (ReturnOutcome, error) {
	return s.recordReturn(ctx, ledger.KindSalesReturn, e)
}

func (s *Service) recordReturn(ctx context.Context, kind ledger.Kind, e *ledger.Entry) (ReturnOutcome, error) {
	if err := s.prepare(ctx, kind, e); err != nil {
		return ReturnOutcome{}, err
	}

	var outcome ReturnOutcome
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, e); err != nil {
			return err
		}

		var res Result
		if kind == ledger.KindPurchaseReturn {
			res = s.validator.ValidatePurchaseReturn(ctx, e.ProductID, e.BatchNo, e.Quantity, nil)
		} else {
			res = s.validator.ValidateSalesReturn(ctx, e.ProductID, e.BatchNo, e.Quantity, nil)
		}
		if !res.Valid {
			return res.Err()
		}

		if err := s.ledger.Insert(ctx, e); err != nil {
			return fmt.Errorf("insert %s: %w", kind, err)
		}

		if kind == ledger.KindPurchaseReturn {
			outcome = s.processor.ProcessPurchaseReturn(ctx, e)
		} else {
			outcome = s.processor.ProcessSalesReturn(ctx, e)
		}
		if !outcome.Success {
			return outcome.AppError()
		}

		return s.record(ctx, s.newChange(ctx, ActionCreate, e, outcome.PreviousStock, outcome.NewStock))
	})
	if err != nil {
		return ReturnOutcome{}, err
	}

	return outcome, nil
}

// DeleteEntry hard-deletes a ledger row. Removing a purchase or a sales
// return is refused when the batch would drop below zero.
func (s *Service) DeleteEntry(ctx context.Context, kind ledger.Kind, entryID id.ID) (*StockChange, error) {
	if !kind.Valid() {
		return nil, apperror.NewFieldValidation("kind", fmt.Sprintf("unknown ledger kind %q", kind))
	}

	var change *StockChange
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.ledger.Get(ctx, kind, entryID)
		if err != nil {
			return err
		}
		if err := s.lock(ctx, e); err != nil {
			return err
		}

		before, err := s.calc.BatchStock(ctx, e.ProductID, e.BatchNo)
		if err != nil {
			return err
		}
		after := before - kind.Sign()*e.Quantity
		if after < 0 {
			return apperror.NewBusinessRule(apperror.CodeInsufficientStock,
				fmt.Sprintf("Cannot delete %s: batch %s would drop to %d units", kind, e.BatchNo, after)).
				WithDetail("product_id", e.ProductID).
				WithDetail("batch_no", e.BatchNo).
				WithDetail("available", before).
				WithDetail("quantity", e.Quantity)
		}

		if err := s.ledger.Delete(ctx, kind, entryID); err != nil {
			return fmt.Errorf("delete %s: %w", kind, err)
		}

		change = s.newChange(ctx, ActionDelete, e, before, after)
		return s.record(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.logChange(ctx, change)
	return change, nil
}

// BulkImportPurchases stores many purchase rows in one transaction.
// The whole import fails on the first invalid row.
func (s *Service) BulkImportPurchases(ctx context.Context, entries []*ledger.Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, apperror.NewValidation("no purchase rows to import")
	}

	for i, e := range entries {
		if err := s.prepare(ctx, ledger.KindPurchase, e); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return 0, appErr.WithDetail("row", i+1)
			}
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	var inserted int64
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		checked := make(map[id.ID]struct{})
		for _, e := range entries {
			if _, ok := checked[e.ProductID]; ok {
				continue
			}
			if err := s.requireProduct(ctx, e.ProductID); err != nil {
				return err
			}
			checked[e.ProductID] = struct{}{}
		}

		if err := s.lock(ctx, entries...); err != nil {
			return err
		}

		n, err := s.ledger.BulkInsert(ctx, ledger.KindPurchase, entries)
		if err != nil {
			return fmt.Errorf("bulk insert purchases: %w", err)
		}
		inserted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "imported purchases", "rows", inserted)
	return inserted, nil
}

// History returns the stock audit trail of one ledger row, newest first.
func (s *Service) History(ctx context.Context, kind ledger.Kind, entryID id.ID, limit int) ([]StockChange, error) {
	if !kind.Valid() {
		return nil, apperror.NewFieldValidation("kind", fmt.Sprintf("unknown ledger kind %q", kind))
	}
	if s.audit == nil {
		return []StockChange{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.audit.History(ctx, kind, entryID, limit)
}

func (s *Service) prepare(ctx context.Context, kind ledger.Kind, e *ledger.Entry) error {
	e.Kind = kind
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := e.Validate(ctx); err != nil {
		return err
	}

	expiry, err := s.dates.NormalizeExpiry(e.Expiry)
	if err != nil {
		return dateError(err)
	}
	e.Expiry = expiry

	if e.EntryDate != nil {
		d, err := s.dates.Parse("entryDate", *e.EntryDate)
		if err != nil {
			return dateError(err)
		}
		if d == nil {
			e.EntryDate = nil
		} else {
			v := d.FormatStorage()
			e.EntryDate = &v
		}
	}

	if e.CreatedBy == nil {
		if userID := appctx.GetUserID(ctx); userID != "" {
			e.CreatedBy = &userID
		}
	}
	return nil
}

func (s *Service) requireProduct(ctx context.Context, productID id.ID) error {
	exists, err := s.products.Exists(ctx, productID)
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return apperror.NewProductNotFound(productID)
	}
	return nil
}

// lock takes batch locks in a fixed order so concurrent multi-batch writers
// cannot deadlock each other.
func (s *Service) lock(ctx context.Context, entries ...*ledger.Entry) error {
	if s.locker == nil {
		return nil
	}

	type batchKey struct {
		productID id.ID
		key       string
	}
	seen := make(map[batchKey]struct{}, len(entries))
	keys := make([]batchKey, 0, len(entries))
	for _, e := range entries {
		k := batchKey{productID: e.ProductID, key: e.BatchKey()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID.String() < keys[j].productID.String()
		}
		return keys[i].key < keys[j].key
	})

	for _, k := range keys {
		if err := s.locker.LockBatch(ctx, k.productID, k.key); err != nil {
			return fmt.Errorf("lock batch %s: %w", k.key, err)
		}
	}
	return nil
}

func (s *Service) newChange(ctx context.Context, action Action, e *ledger.Entry, before, after int64) *StockChange {
	snapshot := *e
	return &StockChange{
		ID:            id.New(),
		EntryID:       e.ID,
		Kind:          e.Kind,
		Action:        action,
		ProductID:     e.ProductID,
		BatchNo:       e.BatchNo,
		Quantity:      e.Quantity,
		PreviousStock: before,
		NewStock:      after,
		UserID:        appctx.GetUserID(ctx),
		Snapshot:      &snapshot,
		CreatedAt:     time.Now().UTC(),
	}
}

func (s *Service) record(ctx context.Context, change *StockChange) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.RecordStockChange(ctx, change); err != nil {
		return fmt.Errorf("record stock change: %w", err)
	}
	return nil
}

func (s *Service) logChange(ctx context.Context, change *StockChange) {
	logger.Info(ctx, "stock changed",
		"action", change.Action,
		"kind", change.Kind,
		"entry_id", change.EntryID,
		"product_id", change.ProductID,
		"batch_no", change.BatchNo,
		"quantity", change.Quantity,
		"stock_before", change.PreviousStock,
		"stock_after", change.NewStock,
	)
}

func dateError(err error) error {
	var vErr *dates.ValidationError
	if errors.As(err, &vErr) {
		return vErr.AppError()
	}
	return err
}
