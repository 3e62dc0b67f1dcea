package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/froggyflex/hotelma/pkg/event"
)

// NATSFeed reads order events from the message bus instead of the gRPC
// stream.
type NATSFeed struct {
	*hub

	subscriber events.Subscriber
	topic      string
}

func NewNATSFeed(subscriber events.Subscriber, logger aqm.Logger) *NATSFeed {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &NATSFeed{
		hub:        newHub(logger),
		subscriber: subscriber,
		topic:      event.OrderEventsTopic,
	}
}

func (f *NATSFeed) Start(ctx context.Context) error {
	if f.subscriber == nil {
		return fmt.Errorf("subscriber is required")
	}
	if err := f.subscriber.Subscribe(ctx, f.topic, f.handle); err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", f.topic, err)
	}
	f.logger.Info("subscribed to order events", "topic", f.topic)
	return nil
}

func (f *NATSFeed) handle(ctx context.Context, msg []byte) error {
	var evt event.OrderEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		return fmt.Errorf("cannot decode order event: %w", err)
	}
	f.broadcast(evt)
	return nil
}

func (f *NATSFeed) Stop(ctx context.Context) error {
	f.closeAll()
	if closer, ok := f.subscriber.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
