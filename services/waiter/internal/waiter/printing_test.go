package waiter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/froggyflex/hotelma/services/waiter/internal/bridge"
	"github.com/froggyflex/hotelma/services/waiter/internal/orderapi"
	"github.com/froggyflex/hotelma/services/waiter/internal/printq"
	"github.com/froggyflex/hotelma/services/waiter/internal/ticket"
	"github.com/google/uuid"
)

func seededOrder(f *fixture) *orderapi.Order {
	return f.orders.Seed(tableT1,
		orderapi.ItemInput{ProductID: cokeID, Name: "Coke", Category: "Drinks", Quantity: 2},
		orderapi.ItemInput{ProductID: burgerID, Name: "Burger", Category: "Grill", Quantity: 1, CustomNote: "well done"},
	)
}

func TestPrinterDispatch(t *testing.T) {
	f := newFixture(t)
	order := seededOrder(f)

	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	done := func(ctx context.Context, out Outcome) {
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
	}

	first, err := f.printer.Dispatch(order, order.Items[:1], done)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	second, err := f.printer.Dispatch(order, order.Items[1:], done)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	f.settle(t)

	if first.AttemptID == second.AttemptID {
		t.Error("each dispatch should get its own attempt id")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].AttemptID != first.AttemptID || outcomes[1].AttemptID != second.AttemptID {
		t.Error("attempts should settle in dispatch order")
	}
	for _, out := range outcomes {
		if out.Err != nil {
			t.Errorf("outcome %s error = %v", out.AttemptID, out.Err)
		}
	}

	payloads := f.bridge.Payloads()
	if len(payloads) != 2 {
		t.Fatalf("payloads = %d, want 2", len(payloads))
	}
	if !strings.Contains(payloads[0], "2x Coke") || strings.Contains(payloads[0], "Burger") {
		t.Errorf("first ticket = %q, want only the coke", payloads[0])
	}
	if !strings.Contains(payloads[1], "1x Burger") || !strings.Contains(payloads[1], "  * well done") {
		t.Errorf("second ticket = %q, want the burger with its note", payloads[1])
	}

	stored := f.orders.Stored(order.ID)
	for _, item := range stored.Items {
		if !item.Printed || item.Status != "sent" {
			t.Errorf("item %s = %s printed %v, want sent and printed", item.Name, item.Status, item.Printed)
		}
	}
}

func TestPrinterDispatchSnapshotsItems(t *testing.T) {
	f := newFixture(t)
	order := seededOrder(f)

	release := make(chan struct{})
	f.bridge.PrintFunc = func(ctx context.Context, payload string) (bridge.Result, error) {
		<-release
		return bridge.Result{OK: true}, nil
	}

	items := append([]orderapi.Item(nil), order.Items...)
	d, err := f.printer.Dispatch(order, items, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	items[0].ID = uuid.New()
	close(release)
	f.settle(t)

	confirmed := f.orders.Confirmations
	if len(confirmed) != 1 {
		t.Fatalf("confirmations = %d, want 1", len(confirmed))
	}
	if confirmed[0].ItemIDs[0] != order.Items[0].ID || confirmed[0].AttemptID != d.AttemptID {
		t.Errorf("confirmation = %+v, want the ids captured at dispatch", confirmed[0])
	}
}

func TestPrinterSkipsItemsInFlight(t *testing.T) {
	f := newFixture(t)
	order := seededOrder(f)

	release := make(chan struct{})
	f.bridge.PrintFunc = func(context.Context, string) (bridge.Result, error) {
		<-release
		return bridge.Result{OK: true}, nil
	}

	first, err := f.printer.Dispatch(order, order.Items[:1], nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	second, err := f.printer.Dispatch(order, order.Items, nil)
	if err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}
	if len(second.ItemIDs) != 1 || second.ItemIDs[0] != order.Items[1].ID {
		t.Errorf("second dispatch items = %v, want only the item not yet queued", second.ItemIDs)
	}

	_, err = f.printer.Dispatch(order, order.Items[:1], nil)
	if !errors.Is(err, bridge.ErrPrintInProgress) {
		t.Errorf("Dispatch() of queued items error = %v, want ErrPrintInProgress", err)
	}
	if Code(err) != CodePrintInProgress {
		t.Errorf("Code() = %q, want %q", Code(err), CodePrintInProgress)
	}
	if h := f.printer.Health(); h.InFlight != 2 {
		t.Errorf("InFlight = %d, want 2", h.InFlight)
	}

	close(release)
	f.settle(t)

	if got := len(f.bridge.Payloads()); got != 2 {
		t.Errorf("payloads = %d, want 2", got)
	}
	if h := f.printer.Health(); h.InFlight != 0 {
		t.Errorf("InFlight after settle = %d, want 0", h.InFlight)
	}
	if first.AttemptID == second.AttemptID {
		t.Error("each dispatch should get its own attempt id")
	}
}

func TestPrinterTicketTime(t *testing.T) {
	tests := []struct {
		name      string
		createdAt time.Time
		want      string
	}{
		{name: "orderCreation", createdAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), want: "TIME: 09:30"},
		{name: "unknownCreationUsesNow", want: "TIME: 18:45"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.printer.now = func() time.Time { return time.Date(2026, 3, 1, 18, 45, 0, 0, time.UTC) }
			order := seededOrder(f)
			order.CreatedAt = tt.createdAt

			if _, err := f.printer.Dispatch(order, order.Items, nil); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			f.settle(t)

			payloads := f.bridge.Payloads()
			if len(payloads) != 1 || !strings.Contains(payloads[0], tt.want) {
				t.Errorf("ticket = %q, want %q", payloads, tt.want)
			}
		})
	}
}

func TestPrinterDispatchErrors(t *testing.T) {
	f := newFixture(t)
	order := seededOrder(f)

	tests := []struct {
		name    string
		order   *orderapi.Order
		items   []orderapi.Item
		wantErr error
	}{
		{name: "noOrder", order: nil, items: order.Items, wantErr: ErrNoOrder},
		{name: "noItems", order: order, items: nil, wantErr: ErrNothingToPrint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.printer.Dispatch(tt.order, tt.items, nil); !errors.Is(err, tt.wantErr) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.queue.Close(ctx)
	if _, err := f.printer.Dispatch(order, order.Items, nil); !errors.Is(err, printq.ErrClosed) {
		t.Errorf("Dispatch() on closed queue error = %v, want ErrClosed", err)
	}
}

func TestPrinterFailureLeavesItemsPending(t *testing.T) {
	tests := []struct {
		name     string
		result   bridge.Result
		err      error
		wantCode string
	}{
		{name: "printerReportsFailure", result: bridge.Result{Code: "COVER_OPEN"}, wantCode: "COVER_OPEN"},
		{name: "printerErrors", err: errBoom, wantCode: CodePrintFailed},
		{name: "bridgeDown", err: bridge.ErrBridgeUnavailable, wantCode: CodeBridgeUnavailable},
		{name: "printerBusy", err: bridge.ErrPrintInProgress, wantCode: CodePrintInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := seededOrder(f)
			f.bridge.PrintFunc = func(context.Context, string) (bridge.Result, error) {
				return tt.result, tt.err
			}

			var got Outcome
			if _, err := f.printer.Dispatch(order, order.Items, func(ctx context.Context, out Outcome) { got = out }); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			f.settle(t)

			if Code(got.Err) != tt.wantCode {
				t.Errorf("outcome code = %q, want %q", Code(got.Err), tt.wantCode)
			}
			if n := f.orders.ConfirmationCount(); n != 0 {
				t.Errorf("confirmations = %d, want 0", n)
			}
			if pending := f.orders.Stored(order.ID).PendingPrint(); len(pending) != 2 {
				t.Errorf("pending = %d, want 2", len(pending))
			}
			if len(f.bridge.Payloads()) != 1 {
				t.Error("a failed print must not be retried automatically")
			}
		})
	}
}

func TestPrinterFlushDelay(t *testing.T) {
	f := newFixture(t)
	order := seededOrder(f)
	f.printer = NewPrinter(f.queue, f.bridge, f.orders, f.catalog, PrinterConfig{FlushDelay: 50 * time.Millisecond, Location: time.UTC}, nil)

	var printedAt, confirmedAt time.Time
	f.bridge.PrintFunc = func(context.Context, string) (bridge.Result, error) {
		printedAt = time.Now()
		return bridge.Result{OK: true}, nil
	}
	f.orders.ConfirmPrintedFunc = func(context.Context, uuid.UUID, []uuid.UUID, uuid.UUID) (*orderapi.Order, error) {
		confirmedAt = time.Now()
		return nil, nil
	}

	if _, err := f.printer.Dispatch(order, order.Items, nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	f.settle(t)

	if confirmedAt.IsZero() {
		t.Fatal("print was not confirmed")
	}
	if gap := confirmedAt.Sub(printedAt); gap < 50*time.Millisecond {
		t.Errorf("confirmed %v after printing, want at least the flush delay", gap)
	}
}

func TestPrinterSplitsBarAndKitchen(t *testing.T) {
	f := newFixture(t)
	order := seededOrder(f)
	f.printer = NewPrinter(f.queue, f.bridge, f.orders, f.catalog, PrinterConfig{
		Location: time.UTC,
		Layout:   ticket.Layout{BarCategories: []string{"Drinks"}, KitchenCategories: []string{"Grill"}},
	}, nil)

	if _, err := f.printer.Dispatch(order, order.Items, nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	f.settle(t)

	payloads := f.bridge.Payloads()
	if len(payloads) != 1 {
		t.Fatalf("payloads = %d, want one job for both tickets", len(payloads))
	}
	parts := strings.Split(payloads[0], ticket.CutLine)
	if len(parts) != 2 || !strings.Contains(parts[0], "Coke") || !strings.Contains(parts[1], "Burger") {
		t.Errorf("ticket = %q, want bar then kitchen", payloads[0])
	}
}

func TestPrinterHealth(t *testing.T) {
	f := newFixture(t)
	order := seededOrder(f)

	h := f.printer.Health()
	if h.Bridge != "memory" || h.LastError != "" || h.LastPrintedAt != nil {
		t.Errorf("initial health = %+v", h)
	}

	f.bridge.PrintFunc = failWith("PAPER_OUT")
	f.printer.Dispatch(order, order.Items, nil)
	f.settle(t)

	h = f.printer.Health()
	if h.LastErrorCode != "PAPER_OUT" || h.LastErrorAt == nil {
		t.Errorf("health after failure = %+v", h)
	}
	if h.Stats.Executed != 1 || h.Stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 executed 1 failed", h.Stats)
	}

	f.bridge.PrintFunc = nil
	f.printer.Dispatch(order, order.Items, nil)
	f.settle(t)

	h = f.printer.Health()
	if h.LastError != "" || h.LastPrintedAt == nil {
		t.Errorf("health after success = %+v", h)
	}
}
