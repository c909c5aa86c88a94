package stock

import (
	"context"
	"fmt"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/domain/ledger"
	"pharmastock/pkg/logger"
)

// ReturnOutcome reports the stock movement caused by an already stored return row.
type ReturnOutcome struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	Kind          ledger.Kind `json:"kind"`
	ProductName   string      `json:"productName,omitempty"`
	BatchNo       string      `json:"batchNo"`
	Quantity      int64       `json:"quantity"`
	PreviousStock int64       `json:"previousStock"`
	NewStock      int64       `json:"newStock"`
	StockImpact   int64       `json:"stockImpact"`
	ErrorType     Reason      `json:"errorType,omitempty"`

	Err error `json:"-"`
}

// AppError converts a failed outcome into an AppError. Nil on success.
func (o ReturnOutcome) AppError() error {
	if o.Success {
		return nil
	}
	switch o.ErrorType {
	case ReasonInsufficientStock:
		return apperror.NewBusinessRule(apperror.CodeInsufficientStock, o.Message).
			WithDetail("available", o.PreviousStock).
			WithDetail("requested", o.Quantity)
	case ReasonInvalidQuantity:
		return apperror.NewInvalidQuantity(o.Quantity)
	case ReasonBatchNotFound:
		return apperror.NewBusinessRule(apperror.CodeBatchNotFound, o.Message)
	}
	if appErr, ok := apperror.AsAppError(o.Err); ok {
		return appErr
	}
	return apperror.NewInternal(o.Err)
}

// Processor computes before/after stock for return rows that are already stored.
type Processor struct {
	agg      *Aggregator
	products ProductCatalog
}

// NewProcessor creates a new return processor.
func NewProcessor(agg *Aggregator, products ProductCatalog) *Processor {
	return &Processor{agg: agg, products: products}
}

// ProcessPurchaseReturn reports the decrease caused by a stored purchase return.
// The row itself is excluded so PreviousStock is the stock before it.
func (p *Processor) ProcessPurchaseReturn(ctx context.Context, e *ledger.Entry) ReturnOutcome {
	out := ReturnOutcome{Kind: ledger.KindPurchaseReturn, BatchNo: e.BatchNo, Quantity: e.Quantity}
	out.ProductName = p.productName(ctx, e)

	if e.Quantity <= 0 {
		out.ErrorType = ReasonInvalidQuantity
		out.Message = fmt.Sprintf("Invalid return quantity: %d. Quantity must be positive.", e.Quantity)
		return out
	}

	totals, err := p.agg.Aggregate(ctx, AggregateQuery{
		ProductID: e.ProductID,
		BatchNo:   &e.BatchNo,
		Exclude:   &Exclusion{Kind: ledger.KindPurchaseReturn, RowID: e.ID},
	})
	if err != nil {
		return p.failed(ctx, out, err)
	}
	current := totals.Net()

	if current < e.Quantity {
		out.PreviousStock = current
		out.ErrorType = ReasonInsufficientStock
		out.Message = fmt.Sprintf("Insufficient stock for return. Product: %s, Batch: %s. Available: %d, Requested: %d",
			out.ProductName, e.BatchNo, current, e.Quantity)
		return out
	}

	out.Success = true
	out.PreviousStock = current
	out.NewStock = current - e.Quantity
	out.StockImpact = -e.Quantity
	out.Message = fmt.Sprintf("Purchase return processed successfully. %s (Batch: %s) stock reduced from %d to %d units.",
		out.ProductName, e.BatchNo, out.PreviousStock, out.NewStock)

	p.logProcessed(ctx, e, out)
	return out
}

// ProcessSalesReturn reports the increase caused by a stored sales return.
func (p *Processor) ProcessSalesReturn(ctx context.Context, e *ledger.Entry) ReturnOutcome {
	out := ReturnOutcome{Kind: ledger.KindSalesReturn, BatchNo: e.BatchNo, Quantity: e.Quantity}
	out.ProductName = p.productName(ctx, e)

	if e.Quantity <= 0 {
		out.ErrorType = ReasonInvalidQuantity
		out.Message = fmt.Sprintf("Invalid return quantity: %d. Quantity must be positive.", e.Quantity)
		return out
	}

	totals, err := p.agg.Aggregate(ctx, AggregateQuery{
		ProductID: e.ProductID,
		BatchNo:   &e.BatchNo,
		Exclude:   &Exclusion{Kind: ledger.KindSalesReturn, RowID: e.ID},
	})
	if err != nil {
		return p.failed(ctx, out, err)
	}

	if totals.Purchased == 0 {
		out.ErrorType = ReasonBatchNotFound
		out.Message = fmt.Sprintf("Batch %s not found for product %s. Cannot process return.", e.BatchNo, out.ProductName)
		return out
	}

	current := totals.Net()
	out.Success = true
	out.PreviousStock = current
	out.NewStock = current + e.Quantity
	out.StockImpact = e.Quantity
	out.Message = fmt.Sprintf("Sales return processed successfully. %s (Batch: %s) stock increased from %d to %d units.",
		out.ProductName, e.BatchNo, out.PreviousStock, out.NewStock)

	p.logProcessed(ctx, e, out)
	return out
}

func (p *Processor) productName(ctx context.Context, e *ledger.Entry) string {
	prod, err := p.products.GetByID(ctx, e.ProductID)
	if err != nil {
		return e.ProductID.String()
	}
	return prod.Name
}

func (p *Processor) failed(ctx context.Context, out ReturnOutcome, err error) ReturnOutcome {
	out.ErrorType = ReasonSystemError
	out.Err = err
	out.Message = fmt.Sprintf("Error processing %s", out.Kind)
	logger.Error(ctx, "return processing failed",
		"kind", out.Kind,
		"batch_no", out.BatchNo,
		"error", err,
	)
	return out
}

func (p *Processor) logProcessed(ctx context.Context, e *ledger.Entry, out ReturnOutcome) {
	logger.Info(ctx, "return processed",
		"kind", out.Kind,
		"entry_id", e.ID,
		"product_id", e.ProductID,
		"product", out.ProductName,
		"batch_no", e.BatchNo,
		"quantity", e.Quantity,
		"stock_before", out.PreviousStock,
		"stock_after", out.NewStock,
	)
}
