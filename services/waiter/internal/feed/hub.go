// Package feed delivers order change notifications from the order service
// to the waiter terminals.
package feed

import (
	"context"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/event"
)

const subscriberBuffer = 100

// Source is implemented by every feed transport.
type Source interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Subscribe(subscriberID string) <-chan event.OrderEvent
	Unsubscribe(subscriberID string)
}

type hub struct {
	logger aqm.Logger

	mu          sync.RWMutex
	subscribers map[string]chan event.OrderEvent
}

func newHub(logger aqm.Logger) *hub {
	return &hub{
		logger:      logger,
		subscribers: make(map[string]chan event.OrderEvent),
	}
}

func (h *hub) broadcast(evt event.OrderEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
			h.logger.Info("subscriber channel full, dropping event", "subscriber_id", subscriberID)
		}
	}
}

// Subscribe registers a subscriber and returns its event channel.
func (h *hub) Subscribe(subscriberID string) <-chan event.OrderEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan event.OrderEvent, subscriberBuffer)
	h.subscribers[subscriberID] = ch

	h.logger.Info("new order events subscriber", "subscriber_id", subscriberID, "total_subscribers", len(h.subscribers))

	return ch
}

func (h *hub) Unsubscribe(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[subscriberID]; ok {
		close(ch)
		delete(h.subscribers, subscriberID)
		h.logger.Info("order events subscriber disconnected", "subscriber_id", subscriberID, "total_subscribers", len(h.subscribers))
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
