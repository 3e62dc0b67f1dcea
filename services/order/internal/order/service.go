package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg"
	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/google/uuid"
)

// maxSaveAttempts bounds the read-modify-write loop on ErrVersionConflict.
const maxSaveAttempts = 3

type CreateRequest struct {
	Table    TableRef    `json:"table"`
	Nickname string      `json:"nickname,omitempty"`
	Note     string      `json:"note,omitempty"`
	Items    []ItemInput `json:"items"`
}

type ItemInput struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category,omitempty"`
	Quantity   int       `json:"quantity"`
	Notes      []string  `json:"notes,omitempty"`
	CustomNote string    `json:"custom_note,omitempty"`
}

// ActiveTable summarizes an open order for the table map.
type ActiveTable struct {
	TableID      uuid.UUID `json:"table_id"`
	TableName    string    `json:"table_name"`
	OrderID      uuid.UUID `json:"order_id"`
	Nickname     string    `json:"nickname,omitempty"`
	PendingPrint int       `json:"pending_print"`
	PrintStatus  string    `json:"print_status"`
}

// Service owns every state transition of an order. Each mutation is a
// read-modify-write guarded by the repo's version check.
type Service struct {
	repo     OrderRepo
	notifier Notifier
	logger   aqm.Logger
}

func NewService(repo OrderRepo, notifier Notifier, logger aqm.Logger) *Service {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Create opens the first order of a table.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.Table.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: table id is required", ErrInvalid)
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindActiveByTable(ctx, req.Table.ID)
	if err != nil {
		return nil, fmt.Errorf("cannot check active order: %w", err)
	}
	if existing != nil {
		s.rejectCreate(ctx, req.Table.ID, existing.ID)
		return nil, fmt.Errorf("%w: table %s has order %s", ErrConflict, req.Table.ID, existing.ID)
	}

	o := NewOrder(req.Table)
	o.Nickname = req.Nickname
	o.Note = req.Note
	o.BeforeCreate()
	if err := o.Append(items); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrConflict) {
			s.rejectCreate(ctx, req.Table.ID, uuid.Nil)
		}
		return nil, err
	}

	s.logger.Info("order created", "order_id", o.ID, "table_id", o.Table.ID, "items", len(o.Items))
	evt := newOrderEvent(event.EventOrderCreated, o)
	evt.ItemIDs = itemIDStrings(o.Items)
	s.notifier.OrderChanged(ctx, evt)
	return o, nil
}

// Append adds lines to an open order. Lines are always new, never merged.
func (s *Service) Append(ctx context.Context, orderID uuid.UUID, inputs []ItemInput) (*Order, error) {
	items, err := buildItems(inputs)
	if err != nil {
		return nil, err
	}

	o, changed, err := s.mutate(ctx, s.byID(orderID), func(o *Order) (bool, error) {
		return true, o.Append(items)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("order items appended", "order_id", o.ID, "items", len(items))
		evt := newOrderEvent(event.EventOrderItemsAppended, o)
		evt.ItemIDs = itemIDStrings(items)
		s.notifier.OrderChanged(ctx, evt)
	}
	return o, nil
}

// ConfirmPrinted is idempotent on attemptID. A replay returns the current
// order without changes or events.
func (s *Service) ConfirmPrinted(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID, attemptID uuid.UUID) (*Order, error) {
	o, changed, err := s.mutate(ctx, s.byID(orderID), func(o *Order) (bool, error) {
		return o.ConfirmPrinted(attemptID, itemIDs)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		s.logger.Debug("print attempt already confirmed", "order_id", orderID, "attempt_id", attemptID)
		return o, nil
	}

	s.logger.Info("order items printed", "order_id", o.ID, "attempt_id", attemptID, "items", len(itemIDs))
	evt := newOrderEvent(event.EventOrderItemsPrinted, o)
	evt.ItemIDs = uuidStrings(normalizeIDs(itemIDs))
	evt.AttemptID = attemptID.String()
	s.notifier.OrderChanged(ctx, evt)
	return o, nil
}

func (s *Service) MarkDelivered(ctx context.Context, itemID uuid.UUID) (*Order, error) {
	load := func(ctx context.Context) (*Order, error) {
		return s.repo.FindByItemID(ctx, itemID)
	}
	o, changed, err := s.mutate(ctx, load, func(o *Order) (bool, error) {
		return o.MarkItemDelivered(itemID)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		evt := newOrderEvent(event.EventOrderItemDelivered, o)
		evt.ItemIDs = []string{itemID.String()}
		s.notifier.OrderChanged(ctx, evt)
	}
	return o, nil
}

func (s *Service) Rename(ctx context.Context, orderID uuid.UUID, nickname string) (*Order, error) {
	o, changed, err := s.mutate(ctx, s.byID(orderID), func(o *Order) (bool, error) {
		if o.Nickname == nickname && !o.IsClosed() {
			return false, nil
		}
		return true, o.Rename(nickname)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notifier.OrderChanged(ctx, newOrderEvent(event.EventOrderRenamed, o))
	}
	return o, nil
}

// Close is terminal. Closing a closed order fails with ErrClosed.
func (s *Service) Close(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, _, err := s.mutate(ctx, s.byID(orderID), func(o *Order) (bool, error) {
		return true, o.Close()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order closed", "order_id", o.ID, "table_id", o.Table.ID, "pending_print", len(o.PendingPrint()))
	s.notifier.OrderChanged(ctx, newOrderEvent(event.EventOrderClosed, o))
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	return o, nil
}

// Active returns the open order of a table or ErrNotFound.
func (s *Service) Active(ctx context.Context, tableID uuid.UUID) (*Order, error) {
	o, err := s.repo.FindActiveByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: no open order for table %s", ErrNotFound, tableID)
	}
	return o, nil
}

func (s *Service) ActiveTables(ctx context.Context) ([]ActiveTable, error) {
	orders, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]ActiveTable, 0, len(orders))
	for _, o := range orders {
		tables = append(tables, ActiveTable{
			TableID:      o.Table.ID,
			TableName:    o.Table.Name,
			OrderID:      o.ID,
			Nickname:     o.Nickname,
			PendingPrint: len(o.PendingPrint()),
			PrintStatus:  o.PrintStatus,
		})
	}
	return tables, nil
}

func (s *Service) byID(id uuid.UUID) func(context.Context) (*Order, error) {
	return func(ctx context.Context) (*Order, error) {
		return s.repo.Get(ctx, id)
	}
}

// mutate loads, applies and saves, reloading on version conflicts. apply
// reports whether it changed anything; unchanged orders are not saved.
func (s *Service) mutate(ctx context.Context, load func(context.Context) (*Order, error), apply func(*Order) (bool, error)) (*Order, bool, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		o, err := load(ctx)
		if err != nil {
			return nil, false, err
		}
		if o == nil {
			return nil, false, ErrNotFound
		}

		changed, err := apply(o)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return o, false, nil
		}

		err = s.repo.Save(ctx, o)
		if err == nil {
			return o, true, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, false, fmt.Errorf("cannot save order: %w", err)
		}
		s.logger.Debug("order version conflict, retrying", "order_id", o.ID, "attempt", attempt)
	}
	return nil, false, ErrVersionConflict
}

func (s *Service) rejectCreate(ctx context.Context, tableID, activeOrderID uuid.UUID) {
	evt := pkg.OrderTableRejectionEvent{
		EventType:  pkg.EventOrderTableRejected,
		TableID:    tableID.String(),
		Action:     "create_order",
		Reason:     ErrConflict.Error(),
		OccurredAt: time.Now().UTC(),
	}
	if activeOrderID != uuid.Nil {
		evt.ActiveOrderID = activeOrderID.String()
	}
	s.logger.Info("order create rejected", "table_id", tableID, "active_order_id", evt.ActiveOrderID)
	s.notifier.TableRejected(ctx, evt)
}

func buildItems(inputs []ItemInput) ([]OrderItem, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalid)
	}
	items := make([]OrderItem, 0, len(inputs))
	for _, in := range inputs {
		item := NewOrderItem(in)
		if err := item.Validate(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func itemIDStrings(items []OrderItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID.String())
	}
	return ids
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

type noopNotifier struct{}

func (noopNotifier) OrderChanged(context.Context, event.OrderEvent) {}
func (noopNotifier) TableRejected(context.Context, pkg.OrderTableRejectionEvent) {}
