package order

import "errors"

var (
	ErrNotFound        = errors.New("order not found")
	ErrInvalid         = errors.New("invalid order request")
	ErrConflict        = errors.New("table already has an open order")
	ErrClosed          = errors.New("order is closed")
	ErrAttemptMismatch = errors.New("print attempt already confirmed with different items")
	ErrVersionConflict = errors.New("order was modified concurrently")
)
