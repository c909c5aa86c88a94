// Package ledger_repo provides the PostgreSQL implementation of the four
// ledger tables and the stock reads derived from them.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/infrastructure/storage/postgres"
)

var tables = map[ledger.Kind]string{
	ledger.KindPurchase:       "purchases",
	ledger.KindSale:           "sales",
	ledger.KindPurchaseReturn: "purchase_returns",
	ledger.KindSalesReturn:    "sales_returns",
}

// entryColumns excludes batch_key, which the database generates from batch_no.
var entryColumns = postgres.ExtractDBColumns[ledger.Entry]()

// updatableColumns are rewritten by Update; id, created_by and created_at stay.
var updatableColumns = []string{
	"product_id", "batch_no", "expiry", "quantity", "rate", "mrp", "invoice_ref", "entry_date",
}

// TableName returns the table holding rows of kind.
func TableName(kind ledger.Kind) (string, error) {
	table, ok := tables[kind]
	if !ok {
		return "", apperror.NewFieldValidation("kind", fmt.Sprintf("unknown ledger kind %q", kind))
	}
	return table, nil
}

// Repo implements ledger.Repository and stock.Repository.
type Repo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewRepo creates a new ledger repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert stores one ledger row.
func (r *Repo) Insert(ctx context.Context, e *ledger.Entry) error {
	sql, args, err := r.insertQuery(e.Kind, []*ledger.Entry{e})
	if err != nil {
		return err
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", e.Kind, err)
	}
	return nil
}

// BulkInsert stores entries with COPY inside a transaction, or with one
// multi-row INSERT outside of one.
func (r *Repo) BulkInsert(ctx context.Context, kind ledger.Kind, entries []*ledger.Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	table, err := TableName(kind)
	if err != nil {
		return 0, err
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, postgres.Pick(postgres.StructToMap(e), entryColumns))
		}
		return r.inserter.CopyFromSlice(ctx, table, entryColumns, rows)
	}

	sql, args, err := r.insertQuery(kind, entries)
	if err != nil {
		return 0, err
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s rows: %w", kind, err)
	}
	return result.RowsAffected(), nil
}

// Get retrieves one ledger row.
func (r *Repo) Get(ctx context.Context, kind ledger.Kind, entryID id.ID) (*ledger.Entry, error) {
	table, err := TableName(kind)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.builder.Select(entryColumns...).
		From(table).
		Where(squirrel.Eq{"id": entryID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e ledger.Entry
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(string(kind), entryID.String())
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	e.Kind = kind
	return &e, nil
}

// Update overwrites a row in place.
func (r *Repo) Update(ctx context.Context, e *ledger.Entry) error {
	table, err := TableName(e.Kind)
	if err != nil {
		return err
	}

	data := postgres.StructToMap(e)
	set := make(map[string]any, len(updatableColumns))
	for _, col := range updatableColumns {
		set[col] = data[col]
	}

	sql, args, err := r.builder.Update(table).
		SetMap(set).
		Where(squirrel.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", e.Kind, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(string(e.Kind), e.ID.String())
	}
	return nil
}

// Delete performs physical removal from the database.
func (r *Repo) Delete(ctx context.Context, kind ledger.Kind, entryID id.ID) error {
	table, err := TableName(kind)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Delete(table).
		Where(squirrel.Eq{"id": entryID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(string(kind), entryID.String())
	}
	return nil
}

func (r *Repo) insertQuery(kind ledger.Kind, entries []*ledger.Entry) (string, []any, error) {
	table, err := TableName(kind)
	if err != nil {
		return "", nil, err
	}

	q := r.builder.Insert(table).Columns(entryColumns...)
	for _, e := range entries {
		q = q.Values(postgres.Pick(postgres.StructToMap(e), entryColumns)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return sql, args, nil
}
