package waiter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/google/uuid"
)

const keepaliveInterval = 30 * time.Second

// OrderEventSource is the subscription side of a feed.
type OrderEventSource interface {
	Subscribe(subscriberID string) <-chan event.OrderEvent
	Unsubscribe(subscriberID string)
}

// SSEHandler pushes order change notifications to terminals so they know
// when to refetch. An optional table_id query parameter narrows the stream.
type SSEHandler struct {
	source OrderEventSource
	logger aqm.Logger
}

func NewSSEHandler(source OrderEventSource, logger aqm.Logger) *SSEHandler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &SSEHandler{source: source, logger: logger}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	tableID := r.URL.Query().Get("table_id")
	subscriberID := uuid.New().String()
	h.logger.Info("new SSE connection", "subscriber_id", subscriberID, "table_id", tableID)

	events := h.source.Subscribe(subscriberID)
	defer h.source.Unsubscribe(subscriberID)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flush(w)

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case evt, ok := <-events:
			if !ok {
				h.logger.Info("order event channel closed", "subscriber_id", subscriberID)
				return
			}
			if tableID != "" && evt.TableID != tableID {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("cannot encode order event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: order-changed\n")
			fmt.Fprintf(w, "data: %s\n\n", data)
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
