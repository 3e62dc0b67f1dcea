package pkg

import "time"

const (
	// OrderTableTopic groups events emitted by the order service that relate to table operations.
	OrderTableTopic = "orders.tables"

	// EventOrderTableRejected identifies a rejection emitted by the order service.
	EventOrderTableRejected = "order.table.rejected"
)

// OrderTableRejectionEvent captures rejections performed by the order service
// whenever the table's order slot blocks an operation, e.g. a second "first send"
// for a table that already holds an open order.
type OrderTableRejectionEvent struct {
	EventType     string    `json:"event_type"`
	TableID       string    `json:"table_id"`
	OrderID       string    `json:"order_id,omitempty"`
	Action        string    `json:"action"`
	Reason        string    `json:"reason"`
	ActiveOrderID string    `json:"active_order_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
