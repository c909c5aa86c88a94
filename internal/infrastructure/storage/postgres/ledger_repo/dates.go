package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/domain/ledger"
)

// ListDateFields returns the expiry and entry date of every row of kind.
func (r *Repo) ListDateFields(ctx context.Context, kind ledger.Kind) ([]ledger.DateFields, error) {
	sql, args, err := r.listDateFieldsQuery(kind)
	if err != nil {
		return nil, err
	}

	var rows []ledger.DateFields
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s dates: %w", kind, err)
	}
	return rows, nil
}

// UpdateDateFields rewrites the expiry and entry date of one row.
func (r *Repo) UpdateDateFields(ctx context.Context, kind ledger.Kind, row ledger.DateFields) error {
	sql, args, err := r.updateDateFieldsQuery(kind, row)
	if err != nil {
		return err
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s dates: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(string(kind), row.ID.String())
	}
	return nil
}

func (r *Repo) listDateFieldsQuery(kind ledger.Kind) (string, []any, error) {
	table, err := TableName(kind)
	if err != nil {
		return "", nil, err
	}
	sql, args, err := r.builder.Select("id", "expiry", "entry_date").
		From(table).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return sql, args, nil
}

func (r *Repo) updateDateFieldsQuery(kind ledger.Kind, row ledger.DateFields) (string, []any, error) {
	table, err := TableName(kind)
	if err != nil {
		return "", nil, err
	}
	sql, args, err := r.builder.Update(table).
		Set("expiry", row.Expiry).
		Set("entry_date", row.EntryDate).
		Where(squirrel.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return sql, args, nil
}
