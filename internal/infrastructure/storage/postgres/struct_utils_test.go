package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/product"
)

func TestExtractDBColumns_LedgerEntry(t *testing.T) {
	cols := ExtractDBColumns[ledger.Entry]()

	assert.Equal(t, []string{
		"id", "product_id", "batch_no", "expiry", "quantity", "rate", "mrp",
		"invoice_ref", "entry_date", "created_by", "created_at",
	}, cols)
	assert.NotContains(t, cols, "kind")
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	type audited struct {
		product.Product
		Note string `db:"note"`
		Skip string `db:"-"`
	}

	cols := ExtractDBColumns[*audited]()

	assert.Contains(t, cols, "barcode")
	assert.Contains(t, cols, "note")
	assert.NotContains(t, cols, "-")
}

func TestStructToMap_LedgerEntry(t *testing.T) {
	e := ledger.NewEntry(ledger.KindSale, product.NewProduct("X").ID, "B1", 4)
	e.MRP = types.MustMoney("12.50")

	m := StructToMap(e)

	assert.Equal(t, e.ID, m["id"])
	assert.Equal(t, "B1", m["batch_no"])
	assert.Equal(t, int64(4), m["quantity"])
	assert.True(t, e.MRP.Equal(m["mrp"].(types.Money)))
	_, hasKind := m["kind"]
	assert.False(t, hasKind)

	values := Pick(m, []string{"batch_no", "quantity", "missing"})
	assert.Equal(t, []any{"B1", int64(4), nil}, values)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
