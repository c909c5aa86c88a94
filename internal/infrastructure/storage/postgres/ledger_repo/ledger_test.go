package ledger_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
)

func TestTableName(t *testing.T) {
	for kind, want := range map[ledger.Kind]string{
		ledger.KindPurchase:       "purchases",
		ledger.KindSale:           "sales",
		ledger.KindPurchaseReturn: "purchase_returns",
		ledger.KindSalesReturn:    "sales_returns",
	} {
		got, err := TableName(kind)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := TableName("transfer")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestSumQuery(t *testing.T) {
	r := NewRepo(nil)
	productID := id.New()
	batch := "B1"
	exclude := id.New()

	tests := []struct {
		name     string
		kind     ledger.Kind
		filter   stock.SumFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "product",
			kind:     ledger.KindPurchase,
			filter:   stock.SumFilter{ProductID: productID},
			wantSQL:  "SELECT COALESCE(SUM(quantity), 0)::bigint FROM purchases WHERE product_id = $1",
			wantArgs: []any{productID.String()},
		},
		{
			name:     "batch",
			kind:     ledger.KindSalesReturn,
			filter:   stock.SumFilter{ProductID: productID, BatchKey: &batch},
			wantSQL:  "SELECT COALESCE(SUM(quantity), 0)::bigint FROM sales_returns WHERE product_id = $1 AND batch_key = $2",
			wantArgs: []any{productID.String(), "B1"},
		},
		{
			name:     "batch excluding row",
			kind:     ledger.KindSale,
			filter:   stock.SumFilter{ProductID: productID, BatchKey: &batch, ExcludeID: &exclude},
			wantSQL:  "SELECT COALESCE(SUM(quantity), 0)::bigint FROM sales WHERE product_id = $1 AND batch_key = $2 AND id <> $3",
			wantArgs: []any{productID.String(), "B1", exclude.String()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := r.sumQuery(tt.kind, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestListBatchesQuery(t *testing.T) {
	r := NewRepo(nil)

	sql, args, err := r.listBatchesQuery(nil)
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Contains(t, sql, "WITH batches AS (SELECT product_id, batch_key, batch_no, created_at, 0 AS src FROM purchases UNION ALL")
	assert.Contains(t, sql, "3 AS src FROM sales_returns)")
	assert.Contains(t, sql, "SELECT DISTINCT ON (b.product_id, b.batch_key) b.product_id, b.batch_key, b.batch_no,")
	assert.NotContains(t, sql, "WHERE b.product_id")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY b.product_id, b.batch_key, b.src, b.created_at"), sql)

	productID := id.New()
	sql, args, err = r.listBatchesQuery(&productID)
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM batches b WHERE b.product_id = $1 ORDER BY")
	assert.Equal(t, []any{productID.String()}, args)
}

func TestInsertQuery(t *testing.T) {
	r := NewRepo(nil)
	productID := id.New()
	a := ledger.NewEntry(ledger.KindPurchase, productID, "B1", 10)
	b := ledger.NewEntry(ledger.KindPurchase, productID, "B2", 5)

	sql, args, err := r.insertQuery(ledger.KindPurchase, []*ledger.Entry{a, b})
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO purchases (id,product_id,batch_no,expiry,quantity,rate,mrp,invoice_ref,entry_date,created_by,created_at) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11),($12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)",
		sql)
	require.Len(t, args, 22)
	assert.Equal(t, a.ID, args[0])
	assert.Equal(t, "B2", args[13])
	assert.Equal(t, int64(5), args[15])

	_, _, err = r.insertQuery("transfer", []*ledger.Entry{a})
	assert.Error(t, err)
}
