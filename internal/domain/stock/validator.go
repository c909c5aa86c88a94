package stock

import (
	"context"
	"fmt"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/pkg/logger"
)

// Reason tags why a mutation was rejected.
type Reason string

const (
	ReasonInsufficientStock Reason = "insufficient_stock"
	ReasonInvalidQuantity   Reason = "invalid_quantity"
	ReasonBatchNotFound     Reason = "batch_not_found"
	ReasonProductNotFound   Reason = "product_not_found"
	ReasonSaleNotFound      Reason = "sale_not_found"
	ReasonSystemError       Reason = "system_error"
)

// Rejection carries the reason and, for system errors, the underlying cause.
type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return string(r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Result is the outcome of a validation. Rejections never surface as errors
// from the Validate methods; callers inspect Valid and Rejection.
type Result struct {
	Valid             bool   `json:"valid"`
	AvailableStock    int64  `json:"availableStock"`
	RequestedQuantity int64  `json:"requestedQuantity"`
	Shortfall         int64  `json:"shortfall"`
	Message           string `json:"message"`

	ProductID id.ID  `json:"productId"`
	BatchNo   string `json:"batchNo"`

	Rejection *Rejection `json:"-"`
}

// Reason returns the rejection reason, or "" for a valid result.
func (r Result) Reason() Reason {
	if r.Rejection == nil {
		return ""
	}
	return r.Rejection.Reason
}

// Err converts a rejection into an AppError. Nil for a valid result.
func (r Result) Err() error {
	if r.Valid || r.Rejection == nil {
		return nil
	}

	switch r.Rejection.Reason {
	case ReasonInsufficientStock:
		return apperror.NewInsufficientStock(r.ProductID, r.BatchNo, r.RequestedQuantity, r.AvailableStock).
			WithCause(r.Rejection)
	case ReasonInvalidQuantity:
		return apperror.NewInvalidQuantity(r.RequestedQuantity).WithCause(r.Rejection)
	case ReasonBatchNotFound:
		return apperror.NewBatchNotFound(r.ProductID, r.BatchNo).WithCause(r.Rejection)
	case ReasonProductNotFound:
		return apperror.NewProductNotFound(r.ProductID).WithCause(r.Rejection)
	case ReasonSaleNotFound:
		if appErr, ok := apperror.AsAppError(r.Rejection.Err); ok {
			return appErr
		}
		return apperror.NewNotFound("sale", nil).WithCause(r.Rejection)
	default:
		if r.Rejection.Err != nil {
			if appErr, ok := apperror.AsAppError(r.Rejection.Err); ok {
				return appErr
			}
		}
		return apperror.NewInternal(r.Rejection)
	}
}

// Observer is notified of every validation outcome.
type Observer interface {
	ObserveValidation(operation string, result Result)
}

// Validator decides whether a proposed mutation keeps every batch at or above zero.
type Validator struct {
	agg      *Aggregator
	products ProductCatalog
	entries  EntryReader
	observer Observer
}

// NewValidator creates a new transaction validator.
func NewValidator(agg *Aggregator, products ProductCatalog, entries EntryReader) *Validator {
	return &Validator{
		agg:      agg,
		products: products,
		entries:  entries,
	}
}

// WithObserver sets the outcome observer.
func (v *Validator) WithObserver(o Observer) *Validator {
	v.observer = o
	return v
}

// ValidateSale checks that quantity can be sold from the batch. excludeSaleID
// removes an existing sale row from the calculation.
func (v *Validator) ValidateSale(ctx context.Context, productID id.ID, batchNo string, quantity int64, excludeSaleID *id.ID) Result {
	res := v.validateSale(ctx, productID, batchNo, quantity, excludeSaleID)
	v.observe(ctx, "sale", res)
	return res
}

func (v *Validator) validateSale(ctx context.Context, productID id.ID, batchNo string, quantity int64, excludeSaleID *id.ID) Result {
	base := Result{ProductID: productID, BatchNo: batchNo, RequestedQuantity: quantity}

	if quantity <= 0 {
		return invalidQuantity(base)
	}
	if res, ok := v.checkProduct(ctx, base); !ok {
		return res
	}

	q := AggregateQuery{ProductID: productID, BatchNo: &batchNo}
	if excludeSaleID != nil {
		q.Exclude = &Exclusion{Kind: ledger.KindSale, RowID: *excludeSaleID}
	}
	totals, err := v.agg.Aggregate(ctx, q)
	if err != nil {
		return systemError(base, err)
	}

	base.AvailableStock = totals.Net()
	if totals.Purchased == 0 {
		return batchNotFound(base)
	}
	return checkAvailable(base)
}

// ValidatePurchaseReturn checks that quantity can go back to the supplier.
func (v *Validator) ValidatePurchaseReturn(ctx context.Context, productID id.ID, batchNo string, quantity int64, excludeReturnID *id.ID) Result {
	base := Result{ProductID: productID, BatchNo: batchNo, RequestedQuantity: quantity}

	res := func() Result {
		if quantity <= 0 {
			return invalidQuantity(base)
		}
		if res, ok := v.checkProduct(ctx, base); !ok {
			return res
		}

		q := AggregateQuery{ProductID: productID, BatchNo: &batchNo}
		if excludeReturnID != nil {
			q.Exclude = &Exclusion{Kind: ledger.KindPurchaseReturn, RowID: *excludeReturnID}
		}
		totals, err := v.agg.Aggregate(ctx, q)
		if err != nil {
			return systemError(base, err)
		}

		base.AvailableStock = totals.Net()
		return checkAvailable(base)
	}()

	v.observe(ctx, "purchase_return", res)
	return res
}

// ValidateSalesReturn checks that the batch was ever purchased. The quantity
// is not capped by current stock.
func (v *Validator) ValidateSalesReturn(ctx context.Context, productID id.ID, batchNo string, quantity int64, excludeReturnID *id.ID) Result {
	base := Result{ProductID: productID, BatchNo: batchNo, RequestedQuantity: quantity}

	res := func() Result {
		if quantity <= 0 {
			return invalidQuantity(base)
		}
		if res, ok := v.checkProduct(ctx, base); !ok {
			return res
		}

		q := AggregateQuery{ProductID: productID, BatchNo: &batchNo}
		if excludeReturnID != nil {
			q.Exclude = &Exclusion{Kind: ledger.KindSalesReturn, RowID: *excludeReturnID}
		}
		totals, err := v.agg.Aggregate(ctx, q)
		if err != nil {
			return systemError(base, err)
		}

		base.AvailableStock = totals.Net()
		if totals.Purchased == 0 {
			return batchNotFound(base)
		}
		base.Valid = true
		base.Message = "Sales return accepted"
		return base
	}()

	v.observe(ctx, "sales_return", res)
	return res
}

// ValidateEditSale checks an in-place edit of an existing sale.
//
// Shrinking a sale within the same batch is always valid. Otherwise the new
// quantity is checked against the target batch with the original sale row
// excluded, which is equivalent to requiring the increase from current stock.
// RequestedQuantity reports the additional units the edit needs.
func (v *Validator) ValidateEditSale(ctx context.Context, saleID, newProductID id.ID, newBatchNo string, newQuantity int64) Result {
	res := v.validateEditSale(ctx, saleID, newProductID, newBatchNo, newQuantity)
	v.observe(ctx, "edit_sale", res)
	return res
}

func (v *Validator) validateEditSale(ctx context.Context, saleID, newProductID id.ID, newBatchNo string, newQuantity int64) Result {
	base := Result{ProductID: newProductID, BatchNo: newBatchNo, RequestedQuantity: newQuantity}

	if newQuantity <= 0 {
		return invalidQuantity(base)
	}

	sale, err := v.entries.Get(ctx, ledger.KindSale, saleID)
	if err != nil {
		if apperror.IsNotFound(err) {
			base.Message = "Sale record not found"
			base.Rejection = &Rejection{Reason: ReasonSaleNotFound, Err: err}
			return base
		}
		return systemError(base, err)
	}

	sameBatch := sale.ProductID == newProductID &&
		ledger.NormalizeBatch(sale.BatchNo) == ledger.NormalizeBatch(newBatchNo)

	if sameBatch && newQuantity <= sale.Quantity {
		base.Valid = true
		base.RequestedQuantity = 0
		base.Message = "No stock validation required"
		return base
	}

	res := v.validateSale(ctx, newProductID, newBatchNo, newQuantity, &saleID)
	if sameBatch && (res.Valid || res.Reason() == ReasonInsufficientStock) {
		delta := newQuantity - sale.Quantity
		current := res.AvailableStock - sale.Quantity
		res.RequestedQuantity = delta
		res.AvailableStock = current
		res.Shortfall = max(0, delta-current)
		if !res.Valid {
			res.Message = fmt.Sprintf("Insufficient stock. Available: %d, Required: %d", current, delta)
		}
	}
	return res
}

func (v *Validator) checkProduct(ctx context.Context, base Result) (Result, bool) {
	exists, err := v.products.Exists(ctx, base.ProductID)
	if err != nil {
		return systemError(base, err), false
	}
	if !exists {
		base.Message = fmt.Sprintf("Product with ID %s not found", base.ProductID)
		base.Rejection = &Rejection{Reason: ReasonProductNotFound}
		return base, false
	}
	return base, true
}

func (v *Validator) observe(ctx context.Context, operation string, res Result) {
	if res.Reason() == ReasonSystemError {
		logger.Error(ctx, "stock validation failed",
			"operation", operation,
			"product_id", res.ProductID,
			"batch_no", res.BatchNo,
			"error", res.Rejection.Err,
		)
	}
	if v.observer != nil {
		v.observer.ObserveValidation(operation, res)
	}
}

func checkAvailable(res Result) Result {
	switch {
	case res.AvailableStock < res.RequestedQuantity && res.AvailableStock <= 0:
		res.Shortfall = res.RequestedQuantity - res.AvailableStock
		res.Message = fmt.Sprintf("Product batch %s is out of stock.", res.BatchNo)
		res.Rejection = &Rejection{Reason: ReasonInsufficientStock}
	case res.AvailableStock < res.RequestedQuantity:
		res.Shortfall = res.RequestedQuantity - res.AvailableStock
		res.Message = fmt.Sprintf("Insufficient stock. Available: %d, Required: %d", res.AvailableStock, res.RequestedQuantity)
		res.Rejection = &Rejection{Reason: ReasonInsufficientStock}
	default:
		res.Valid = true
		res.Message = "Stock available"
	}
	return res
}

func invalidQuantity(res Result) Result {
	res.Message = fmt.Sprintf("Invalid quantity: %d. Quantity must be positive.", res.RequestedQuantity)
	res.Rejection = &Rejection{Reason: ReasonInvalidQuantity}
	return res
}

func batchNotFound(res Result) Result {
	res.Shortfall = res.RequestedQuantity
	res.Message = fmt.Sprintf("Batch %s has no purchase history", res.BatchNo)
	res.Rejection = &Rejection{Reason: ReasonBatchNotFound}
	return res
}

// systemError keeps the cause but zeroes every numeric field.
func systemError(res Result, err error) Result {
	return Result{
		ProductID: res.ProductID,
		BatchNo:   res.BatchNo,
		Message:   "Error checking stock",
		Rejection: &Rejection{Reason: ReasonSystemError, Err: err},
	}
}
