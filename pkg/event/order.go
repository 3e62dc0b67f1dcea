package event

import "time"

const (
	OrderEventsTopic = "orders.kitchen"

	EventOrderCreated       = "order.created"
	EventOrderItemsAppended = "order.items.appended"
	EventOrderItemsPrinted  = "order.items.printed"
	EventOrderItemDelivered = "order.item.delivered"
	EventOrderRenamed       = "order.renamed"
	EventOrderClosed        = "order.closed"
)

// OrderEvent is published to NATS and broadcast on the order gRPC stream
// after every successful mutation of a kitchen order. Consumers treat it as a
// change notification and refetch the order; it is never merged into state.
type OrderEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	TableID    string    `json:"table_id"`
	TableName  string    `json:"table_name,omitempty"`
	Nickname   string    `json:"nickname,omitempty"`
	Status     string    `json:"status"`
	ItemIDs    []string  `json:"item_ids,omitempty"`
	AttemptID  string    `json:"attempt_id,omitempty"`
	Version    int       `json:"version"`
}
