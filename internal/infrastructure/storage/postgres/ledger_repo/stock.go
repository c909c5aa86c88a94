package ledger_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
)

var (
	_ ledger.Repository = (*Repo)(nil)
	_ stock.Repository  = (*Repo)(nil)
)

// SumQuantities returns the total quantity of matching rows, 0 when none match.
func (r *Repo) SumQuantities(ctx context.Context, kind ledger.Kind, filter stock.SumFilter) (int64, error) {
	sql, args, err := r.sumQuery(kind, filter)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &total, sql, args...); err != nil {
		return 0, fmt.Errorf("sum %s: %w", kind, err)
	}
	return total, nil
}

func (r *Repo) sumQuery(kind ledger.Kind, filter stock.SumFilter) (string, []any, error) {
	table, err := TableName(kind)
	if err != nil {
		return "", nil, err
	}

	q := r.builder.Select("COALESCE(SUM(quantity), 0)::bigint").
		From(table).
		Where(squirrel.Eq{"product_id": filter.ProductID})
	if filter.BatchKey != nil {
		q = q.Where(squirrel.Eq{"batch_key": *filter.BatchKey})
	}
	if filter.ExcludeID != nil {
		q = q.Where(squirrel.NotEq{"id": *filter.ExcludeID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build sum query: %w", err)
	}
	return sql, args, nil
}

// ListBatches enumerates distinct (product, batch) pairs across all four
// ledgers. BatchNo is the spelling of the earliest row, preferring purchases;
// Expiry comes from the earliest purchase that carries one.
func (r *Repo) ListBatches(ctx context.Context, productID *id.ID) ([]stock.BatchRef, error) {
	sql, args, err := r.listBatchesQuery(productID)
	if err != nil {
		return nil, err
	}

	var refs []stock.BatchRef
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &refs, sql, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	if refs == nil {
		refs = []stock.BatchRef{}
	}
	return refs, nil
}

func (r *Repo) listBatchesQuery(productID *id.ID) (string, []any, error) {
	parts := make([]string, 0, len(ledger.Kinds))
	for i, kind := range ledger.Kinds {
		parts = append(parts, fmt.Sprintf(
			"SELECT product_id, batch_key, batch_no, created_at, %d AS src FROM %s", i, tables[kind]))
	}

	q := r.builder.
		Select(
			"b.product_id",
			"b.batch_key",
			"b.batch_no",
			"COALESCE((SELECT p.expiry FROM purchases p"+
				" WHERE p.product_id = b.product_id AND p.batch_key = b.batch_key AND p.expiry <> ''"+
				" ORDER BY p.created_at, p.id LIMIT 1), '') AS expiry",
		).
		Options("DISTINCT ON (b.product_id, b.batch_key)").
		Prefix("WITH batches AS ("+strings.Join(parts, " UNION ALL ")+")").
		From("batches b").
		OrderBy("b.product_id", "b.batch_key", "b.src", "b.created_at")
	if productID != nil {
		q = q.Where(squirrel.Eq{"b.product_id": *productID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build batches query: %w", err)
	}
	return sql, args, nil
}

// PurchaseMRPs returns the MRP of every purchase row of the product.
func (r *Repo) PurchaseMRPs(ctx context.Context, productID id.ID) ([]types.Money, error) {
	sql, args, err := r.builder.Select("mrp").
		From(tables[ledger.KindPurchase]).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var mrps []types.Money
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &mrps, sql, args...); err != nil {
		return nil, fmt.Errorf("purchase MRPs: %w", err)
	}
	return mrps, nil
}
