package stock

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
)

var tracer = otel.Tracer("pharmastock/stock")

// Totals holds the four ledger sums of a product or batch.
type Totals struct {
	Purchased       int64 `json:"purchased"`
	Sold            int64 `json:"sold"`
	PurchaseReturns int64 `json:"purchaseReturns"`
	SalesReturns    int64 `json:"salesReturns"`
}

// Net returns purchased - sold - purchase returns + sales returns.
func (t Totals) Net() int64 {
	return t.Purchased - t.Sold - t.PurchaseReturns + t.SalesReturns
}

// Of returns the sum belonging to kind.
func (t Totals) Of(kind ledger.Kind) int64 {
	switch kind {
	case ledger.KindPurchase:
		return t.Purchased
	case ledger.KindSale:
		return t.Sold
	case ledger.KindPurchaseReturn:
		return t.PurchaseReturns
	case ledger.KindSalesReturn:
		return t.SalesReturns
	}
	return 0
}

// Add returns the field-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Purchased:       t.Purchased + o.Purchased,
		Sold:            t.Sold + o.Sold,
		PurchaseReturns: t.PurchaseReturns + o.PurchaseReturns,
		SalesReturns:    t.SalesReturns + o.SalesReturns,
	}
}

func (t *Totals) set(kind ledger.Kind, v int64) {
	switch kind {
	case ledger.KindPurchase:
		t.Purchased = v
	case ledger.KindSale:
		t.Sold = v
	case ledger.KindPurchaseReturn:
		t.PurchaseReturns = v
	case ledger.KindSalesReturn:
		t.SalesReturns = v
	}
}

// Exclusion removes one row of one ledger from aggregation.
type Exclusion struct {
	Kind  ledger.Kind
	RowID id.ID
}

// AggregateQuery selects the rows to sum.
type AggregateQuery struct {
	ProductID id.ID

	// BatchNo limits the sums to one batch. Compared after NormalizeBatch.
	BatchNo *string

	Exclude *Exclusion
}

// Aggregator sums the four ledgers.
type Aggregator struct {
	repo Repository
}

// NewAggregator creates a new aggregator.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Aggregate returns the four sums for q. Every query reads the ledger afresh.
func (a *Aggregator) Aggregate(ctx context.Context, q AggregateQuery) (Totals, error) {
	ctx, span := tracer.Start(ctx, "stock.aggregate",
		trace.WithAttributes(attribute.String("product_id", q.ProductID.String())))
	defer span.End()

	if q.Exclude != nil && !q.Exclude.Kind.Valid() {
		return Totals{}, apperror.NewFieldValidation("excludeKind",
			fmt.Sprintf("unknown ledger kind %q", q.Exclude.Kind))
	}

	base := SumFilter{ProductID: q.ProductID}
	if q.BatchNo != nil {
		key := ledger.NormalizeBatch(*q.BatchNo)
		base.BatchKey = &key
		span.SetAttributes(attribute.String("batch_key", key))
	}

	var totals Totals
	for _, kind := range ledger.Kinds {
		filter := base
		if q.Exclude != nil && q.Exclude.Kind == kind {
			rowID := q.Exclude.RowID
			filter.ExcludeID = &rowID
		}

		sum, err := a.repo.SumQuantities(ctx, kind, filter)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sum quantities")
			return Totals{}, fmt.Errorf("sum %s quantities: %w", kind, err)
		}
		totals.set(kind, sum)
	}

	return totals, nil
}
