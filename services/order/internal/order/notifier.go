package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/froggyflex/hotelma/pkg"
	"github.com/froggyflex/hotelma/pkg/event"
)

// Notifier receives order change notifications after they are persisted.
type Notifier interface {
	OrderChanged(ctx context.Context, evt event.OrderEvent)
	TableRejected(ctx context.Context, evt pkg.OrderTableRejectionEvent)
}

// idPublisher is implemented by publishers that can deduplicate by message id.
type idPublisher interface {
	PublishWithID(ctx context.Context, topic, id string, msg []byte) error
}

// EventNotifier publishes to NATS and broadcasts on the gRPC stream. Either
// side may be nil.
type EventNotifier struct {
	publisher events.Publisher
	stream    *OrderEventStreamServer
	logger    aqm.Logger
}

func NewEventNotifier(publisher events.Publisher, stream *OrderEventStreamServer, logger aqm.Logger) *EventNotifier {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &EventNotifier{publisher: publisher, stream: stream, logger: logger}
}

func (n *EventNotifier) OrderChanged(ctx context.Context, evt event.OrderEvent) {
	if n.stream != nil {
		n.stream.Broadcast(evt)
	}
	if n.publisher == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("cannot marshal order event", "error", err, "order_id", evt.OrderID)
		return
	}

	if p, ok := n.publisher.(idPublisher); ok && evt.AttemptID != "" {
		err = p.PublishWithID(ctx, event.OrderEventsTopic, evt.AttemptID, payload)
	} else {
		err = n.publisher.Publish(ctx, event.OrderEventsTopic, payload)
	}
	if err != nil {
		n.logger.Error("cannot publish order event", "error", err, "event_type", evt.EventType, "order_id", evt.OrderID)
	}
}

func (n *EventNotifier) TableRejected(ctx context.Context, evt pkg.OrderTableRejectionEvent) {
	if n.publisher == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("cannot marshal order table rejection", "error", err, "table_id", evt.TableID)
		return
	}
	if err := n.publisher.Publish(ctx, pkg.OrderTableTopic, payload); err != nil {
		n.logger.Error("cannot publish order table rejection", "error", err, "table_id", evt.TableID)
	}
}

func newOrderEvent(eventType string, o *Order) event.OrderEvent {
	return event.OrderEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		OrderID:    o.ID.String(),
		TableID:    o.Table.ID.String(),
		TableName:  o.Table.Name,
		Nickname:   o.Nickname,
		Status:     o.Status,
		Version:    o.ModelVersion,
	}
}
