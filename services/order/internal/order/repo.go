package order

import (
	"context"

	"github.com/google/uuid"
)

// OrderRepo stores orders as whole documents, items embedded.
//
// Get, FindActiveByTable and FindByItemID return nil, nil when nothing
// matches. Create returns ErrConflict when the table already has an open
// order. Save is a compare-and-swap on ModelVersion: it returns
// ErrVersionConflict when the stored version moved, and bumps
// order.ModelVersion on success.
type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	FindActiveByTable(ctx context.Context, tableID uuid.UUID) (*Order, error)
	FindByItemID(ctx context.Context, itemID uuid.UUID) (*Order, error)
	ListActive(ctx context.Context) ([]*Order, error)
	Save(ctx context.Context, order *Order) error
}
