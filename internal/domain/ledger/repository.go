package ledger

import (
	"context"

	"pharmastock/internal/core/id"
)

// Repository persists ledger rows. Stock reads live in the stock package.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error

	// BulkInsert stores many rows of one kind in a single round trip.
	BulkInsert(ctx context.Context, kind Kind, entries []*Entry) (int64, error)

	// Get returns NOT_FOUND when the row does not exist.
	Get(ctx context.Context, kind Kind, entryID id.ID) (*Entry, error)

	// Update overwrites product, batch, expiry, quantity and prices in place.
	Update(ctx context.Context, e *Entry) error

	// Delete hard-deletes the row. NOT_FOUND when it does not exist.
	Delete(ctx context.Context, kind Kind, entryID id.ID) error
}
