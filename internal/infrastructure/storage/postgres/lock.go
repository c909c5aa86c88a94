package postgres

import (
	"context"
	"fmt"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/stock"
)

var _ stock.BatchLocker = (*BatchLocker)(nil)

// BatchLocker takes transaction-scoped advisory locks keyed by product and
// normalized batch. The lock is released on commit or rollback.
type BatchLocker struct {
	txManager *TxManager
}

// NewBatchLocker creates a new batch locker.
func NewBatchLocker(txManager *TxManager) *BatchLocker {
	return &BatchLocker{txManager: txManager}
}

// LockBatch blocks until no other transaction holds the (product, batch) lock.
// Waiting longer than the transaction's lock_timeout fails with 55P03.
func (l *BatchLocker) LockBatch(ctx context.Context, productID id.ID, batchKey string) error {
	tx := l.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("LockBatch requires transaction context")
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", AdvisoryKey(productID, batchKey)); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// AdvisoryKey is the text hashed into the advisory lock id.
func AdvisoryKey(productID id.ID, batchKey string) string {
	return "stock:" + productID.String() + ":" + batchKey
}
