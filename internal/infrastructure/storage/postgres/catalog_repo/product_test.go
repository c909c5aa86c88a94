package catalog_repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/domain/product"
)

func TestProductRepo_ListQuery(t *testing.T) {
	r := NewProductRepo(nil)

	sql, args, err := r.listQuery("").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, company, packing, category, barcode, created_at, updated_at FROM products", sql)
	assert.Empty(t, args)

	sql, args, err = r.listQuery("para").Limit(10).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, name, company, packing, category, barcode, created_at, updated_at FROM products "+
			"WHERE (name ILIKE $1 OR company ILIKE $2 OR barcode ILIKE $3) LIMIT 10",
		sql)
	assert.Equal(t, []any{"%para%", "%para%", "%para%"}, args)
}

func TestMapWriteError(t *testing.T) {
	barcode := "8901234567890"
	p := &product.Product{Name: "X", Barcode: &barcode}

	err := mapWriteError(p, fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
	assert.Equal(t, barcode, appErr.Details["value"])

	err = mapWriteError(p, errors.New("connection reset"))
	assert.False(t, apperror.IsAppError(err))
	assert.Contains(t, err.Error(), "write products")
}
