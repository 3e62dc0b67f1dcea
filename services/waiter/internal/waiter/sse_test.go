package waiter

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/froggyflex/hotelma/pkg/event"
)

func TestSSEHandlerFiltersByTable(t *testing.T) {
	source := NewMockSource()
	h := NewSSEHandler(source, nil)

	req := httptest.NewRequest("GET", "/events?table_id="+tableT1.ID.String(), nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(w, req)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for source.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	source.Emit(event.OrderEvent{EventType: event.EventOrderRenamed, TableID: tableT2.ID.String(), OrderID: "other"})
	source.Emit(event.OrderEvent{EventType: event.EventOrderItemsPrinted, TableID: tableT1.ID.String(), OrderID: "mine"})
	source.CloseAll()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the feed closed")
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, ": connected\n\nretry: 2000\n\n") {
		t.Errorf("stream preamble = %q", body)
	}
	if strings.Count(body, "event: order-changed") != 1 {
		t.Errorf("stream = %q, want exactly one event", body)
	}
	if !strings.Contains(body, `"order_id":"mine"`) || strings.Contains(body, `"order_id":"other"`) {
		t.Errorf("stream = %q, want only the T1 event", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}
