package waiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/services/waiter/internal/bridge"
	"github.com/froggyflex/hotelma/services/waiter/internal/orderapi"
	"github.com/froggyflex/hotelma/services/waiter/internal/printq"
	"github.com/froggyflex/hotelma/services/waiter/internal/ticket"
	"github.com/google/uuid"
)

const DefaultFlushDelay = 1200 * time.Millisecond

type PrinterConfig struct {
	// FlushDelay is waited after the bridge returns and before the print is
	// confirmed to the order service.
	FlushDelay time.Duration
	Layout     ticket.Layout
	Location   *time.Location
}

// Dispatch identifies one enqueued print attempt.
type Dispatch struct {
	AttemptID uuid.UUID   `json:"attempt_id"`
	OrderID   uuid.UUID   `json:"order_id"`
	ItemIDs   []uuid.UUID `json:"item_ids"`
}

// Outcome is reported once a dispatched attempt settles.
type Outcome struct {
	Dispatch
	Err error
}

type PrinterHealth struct {
	Bridge        string       `json:"bridge"`
	QueueLength   int          `json:"queue_length"`
	Busy          bool         `json:"busy"`
	InFlight      int          `json:"in_flight"`
	Stats         printq.Stats `json:"stats"`
	LastError     string       `json:"last_error,omitempty"`
	LastErrorCode string       `json:"last_error_code,omitempty"`
	LastErrorAt   *time.Time   `json:"last_error_at,omitempty"`
	LastPrintedAt *time.Time   `json:"last_printed_at,omitempty"`
}

// Printer turns order items into print jobs and confirms them to the order
// service once the bridge accepted the payload.
type Printer struct {
	queue   *printq.Queue
	bridge  bridge.PrinterBridge
	orders  OrderAPI
	catalog ticket.Catalog
	cfg     PrinterConfig
	logger  aqm.Logger
	now     func() time.Time

	mu            sync.Mutex
	inFlight      map[uuid.UUID]uuid.UUID // item id -> attempt id
	lastErr       error
	lastErrAt     time.Time
	lastPrintedAt time.Time
}

func NewPrinter(queue *printq.Queue, b bridge.PrinterBridge, orders OrderAPI, catalog ticket.Catalog, cfg PrinterConfig, logger aqm.Logger) *Printer {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if b == nil {
		b = bridge.Null{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Printer{
		queue:    queue,
		bridge:   b,
		orders:   orders,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[uuid.UUID]uuid.UUID),
	}
}

// Dispatch enqueues a ticket for items under a fresh attempt id. The item
// ids are captured now; later changes to the order do not alter the attempt.
// Items already held by an unsettled attempt are left out, and when nothing
// is left the call fails with bridge.ErrPrintInProgress. done, when set, runs
// on the queue worker after the attempt settles.
func (p *Printer) Dispatch(order *orderapi.Order, items []orderapi.Item, done func(ctx context.Context, out Outcome)) (Dispatch, error) {
	if order == nil {
		return Dispatch{}, ErrNoOrder
	}
	if len(items) == 0 {
		return Dispatch{}, ErrNothingToPrint
	}

	d := Dispatch{
		AttemptID: uuid.New(),
		OrderID:   order.ID,
	}
	items = p.claim(d.AttemptID, items)
	if len(items) == 0 {
		return Dispatch{}, fmt.Errorf("%w: items already queued for printing", bridge.ErrPrintInProgress)
	}
	d.ItemIDs = make([]uuid.UUID, 0, len(items))
	lines := make([]ticket.Line, 0, len(items))
	for _, item := range items {
		d.ItemIDs = append(d.ItemIDs, item.ID)
		lines = append(lines, ticket.Line{
			ProductID:  item.ProductID,
			Name:       item.Name,
			Category:   item.Category,
			Qty:        item.Quantity,
			Notes:      append([]string(nil), item.Notes...),
			CustomNote: item.CustomNote,
		})
	}

	payload := ticket.Build(ticket.Header{
		TableName: order.Table.Name,
		Nickname:  order.Nickname,
		Note:      order.Note,
		Time:      ticketTime(order, p.now),
		Location:  p.cfg.Location,
	}, lines, p.catalog, p.cfg.Layout)

	settle := func(ctx context.Context, err error) {
		p.record(err)
		if done != nil {
			done(ctx, Outcome{Dispatch: d, Err: err})
		}
		p.release(d.AttemptID, d.ItemIDs)
	}

	job := printq.Job{
		Name: fmt.Sprintf("order %s attempt %s", d.OrderID, d.AttemptID),
		Execute: func(ctx context.Context) error {
			return bridge.Print(ctx, p.bridge, payload)
		},
		OnSuccess: func(ctx context.Context) error {
			if err := wait(ctx, p.cfg.FlushDelay); err != nil {
				return err
			}
			if _, err := p.orders.ConfirmPrinted(ctx, d.OrderID, d.ItemIDs, d.AttemptID); err != nil {
				return fmt.Errorf("cannot confirm print: %w", err)
			}
			settle(ctx, nil)
			return nil
		},
		OnError: func(ctx context.Context, err error) {
			settle(ctx, err)
		},
	}

	if err := p.queue.Enqueue(job); err != nil {
		p.release(d.AttemptID, d.ItemIDs)
		return Dispatch{}, err
	}

	p.logger.Info("print dispatched", "order_id", d.OrderID, "attempt_id", d.AttemptID, "items", len(d.ItemIDs))
	return d, nil
}

// claim marks the items not yet held by another attempt as held by attemptID
// and returns them.
func (p *Printer) claim(attemptID uuid.UUID, items []orderapi.Item) []orderapi.Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	var free []orderapi.Item
	for _, item := range items {
		if _, held := p.inFlight[item.ID]; held {
			continue
		}
		p.inFlight[item.ID] = attemptID
		free = append(free, item)
	}
	return free
}

func (p *Printer) release(attemptID uuid.UUID, itemIDs []uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range itemIDs {
		if p.inFlight[id] == attemptID {
			delete(p.inFlight, id)
		}
	}
}

// ticketTime is the moment the order was opened, as on the paper tickets the
// kitchen already reads.
func ticketTime(order *orderapi.Order, now func() time.Time) time.Time {
	if order.CreatedAt.IsZero() {
		return now()
	}
	return order.CreatedAt
}

func (p *Printer) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.lastErr = err
		p.lastErrAt = p.now()
		return
	}
	p.lastErr = nil
	p.lastPrintedAt = p.now()
}

// LastError is the error of the most recent attempt, nil after a success.
func (p *Printer) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Printer) Health() PrinterHealth {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := PrinterHealth{
		Bridge:      bridge.NameOf(p.bridge),
		QueueLength: p.queue.Len(),
		Busy:        p.queue.Busy(),
		InFlight:    len(p.inFlight),
		Stats:       p.queue.Stats(),
	}
	if p.lastErr != nil {
		at := p.lastErrAt
		h.LastError = p.lastErr.Error()
		h.LastErrorCode = Code(p.lastErr)
		h.LastErrorAt = &at
	}
	if !p.lastPrintedAt.IsZero() {
		at := p.lastPrintedAt
		h.LastPrintedAt = &at
	}
	return h
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
