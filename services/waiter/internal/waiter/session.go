// Package waiter composes the ordering screen of one terminal: the selected
// table, its draft, the cached active order and the printer.
package waiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/enums/itemstatus"
	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/froggyflex/hotelma/services/waiter/internal/catalog"
	"github.com/froggyflex/hotelma/services/waiter/internal/draft"
	"github.com/froggyflex/hotelma/services/waiter/internal/orderapi"
	"github.com/google/uuid"
)

// OrderAPI is the order service as seen by a terminal.
type OrderAPI interface {
	Active(ctx context.Context, tableID uuid.UUID) (*orderapi.Order, error)
	Create(ctx context.Context, req orderapi.CreateRequest) (*orderapi.Order, error)
	Append(ctx context.Context, orderID uuid.UUID, items []orderapi.ItemInput) (*orderapi.Order, error)
	ConfirmPrinted(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID, attemptID uuid.UUID) (*orderapi.Order, error)
	MarkDelivered(ctx context.Context, itemID uuid.UUID) (*orderapi.Order, error)
	Rename(ctx context.Context, orderID uuid.UUID, nickname string) (*orderapi.Order, error)
	Close(ctx context.Context, orderID uuid.UUID) (*orderapi.Order, error)
	ActiveTables(ctx context.Context) ([]orderapi.ActiveTable, error)
}

// Catalog resolves the reference data a session needs.
type Catalog interface {
	DraftProduct(id uuid.UUID) (draft.Product, bool)
	Table(id uuid.UUID) (catalog.Table, bool)
	ProductCategory(id uuid.UUID) string
}

// optimistic remembers the status an item had before a local patch.
type optimistic struct {
	prevStatus string
}

type Session struct {
	orders  OrderAPI
	catalog Catalog
	printer *Printer
	logger  aqm.Logger

	// ops serializes mutations so a double tap cannot send a draft twice.
	ops sync.Mutex

	mu       sync.Mutex
	gen      uint64
	table    *catalog.Table
	order    *orderapi.Order
	patches  map[uuid.UUID]optimistic
	nickname string
	note     string
	draft    *draft.Buffer
}

func NewSession(orders OrderAPI, cat Catalog, printer *Printer, logger aqm.Logger) *Session {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Session{
		orders:  orders,
		catalog: cat,
		printer: printer,
		logger:  logger,
		patches: map[uuid.UUID]optimistic{},
		draft:   draft.NewBuffer(),
	}
}

// SelectTable discards the cached order and the draft and loads the active
// order of the new table.
func (s *Session) SelectTable(ctx context.Context, tableID uuid.UUID) error {
	t, ok := s.catalog.Table(tableID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, tableID)
	}

	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	s.gen++
	s.table = &t
	s.order = nil
	s.patches = map[uuid.UUID]optimistic{}
	s.nickname = ""
	s.note = ""
	s.draft.Clear()
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh replaces the cached order with the server copy. Pending optimistic
// patches are dropped whatever they say.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.table == nil {
		s.mu.Unlock()
		return nil
	}
	gen, tableID := s.gen, s.table.ID
	s.mu.Unlock()

	order, err := s.orders.Active(ctx, tableID)
	if err != nil {
		return fmt.Errorf("cannot load active order: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.applyLocked(order)
	return nil
}

func (s *Session) applyLocked(order *orderapi.Order) {
	s.order = order
	s.patches = map[uuid.UUID]optimistic{}
	if order != nil {
		s.nickname = order.Nickname
		s.note = order.Note
	}
}

// OnOrderEvent refreshes when another terminal or the kitchen changed the
// order of the open table.
func (s *Session) OnOrderEvent(ctx context.Context, evt event.OrderEvent) {
	s.mu.Lock()
	concerned := s.table != nil && evt.TableID == s.table.ID.String()
	s.mu.Unlock()

	if !concerned {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("cannot refresh after order event", "event_type", evt.EventType, "error", err)
	}
}

// SendResult reports a send. Print carries the dispatched attempt, or
// PrintErr when nothing could be enqueued; the order is saved either way.
type SendResult struct {
	Order    *orderapi.Order `json:"order"`
	Created  bool            `json:"created"`
	Print    *Dispatch       `json:"print,omitempty"`
	PrintErr error           `json:"-"`
}

// Send creates the table's order or appends the draft to it, then prints the
// new lines. On a create conflict the order another terminal opened is
// loaded and the draft kept so it can be sent again as an append.
func (s *Session) Send(ctx context.Context) (*SendResult, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.table == nil {
		s.mu.Unlock()
		return nil, ErrNoTable
	}
	table := *s.table
	current := s.order
	nickname, note := s.nickname, s.note
	lines := s.draft.Items()
	s.mu.Unlock()

	if len(lines) == 0 {
		return nil, ErrEmptyDraft
	}

	inputs := make([]orderapi.ItemInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, orderapi.ItemInput{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Category:   line.Category,
			Quantity:   line.Qty,
			Notes:      line.Notes,
			CustomNote: line.CustomNote,
		})
	}

	var (
		saved *orderapi.Order
		err   error
	)
	created := current == nil
	if created {
		saved, err = s.orders.Create(ctx, orderapi.CreateRequest{
			Table:    orderapi.TableRef{ID: table.ID, Name: table.Name},
			Nickname: nickname,
			Note:     note,
			Items:    inputs,
		})
	} else {
		saved, err = s.orders.Append(ctx, current.ID, inputs)
	}
	if err != nil {
		if rerr := s.Refresh(ctx); rerr != nil {
			s.logger.Error("cannot refresh after failed send", "error", rerr)
		}
		return nil, fmt.Errorf("cannot send order: %w", err)
	}

	s.mu.Lock()
	s.applyLocked(saved)
	s.draft.Clear()
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("cannot refresh after send", "error", err)
	}

	res := &SendResult{Order: saved, Created: created}

	// Items are append-only, so the lines this send added are the tail of the
	// saved order. Older unprinted lines go through RetryPrint.
	added := saved.Items
	if n := len(inputs); n < len(added) {
		added = added[len(added)-n:]
	}
	var fresh []orderapi.Item
	for _, item := range added {
		if item.Status == itemstatus.Statuses.New.Code() && !item.Printed {
			fresh = append(fresh, item)
		}
	}
	if len(fresh) > 0 {
		d, err := s.dispatch(saved, fresh)
		if err != nil {
			s.logger.Error("cannot dispatch print", "order_id", saved.ID, "error", err)
			res.PrintErr = err
		} else {
			res.Print = &d
		}
	}

	return res, nil
}

// RetryPrint prints the items that are still pending, read from a fresh copy
// of the order rather than from an earlier attempt.
func (s *Session) RetryPrint(ctx context.Context) (*Dispatch, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.table == nil {
		s.mu.Unlock()
		return nil, ErrNoTable
	}
	order := s.order
	s.mu.Unlock()

	if order == nil {
		return nil, ErrNoOrder
	}
	pending := order.PendingPrint()
	if len(pending) == 0 {
		return nil, ErrNothingToPrint
	}

	d, err := s.dispatch(order, pending)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Session) dispatch(order *orderapi.Order, items []orderapi.Item) (Dispatch, error) {
	if s.printer == nil {
		return Dispatch{}, fmt.Errorf("printer not configured")
	}
	return s.printer.Dispatch(order, items, s.afterPrint)
}

func (s *Session) afterPrint(ctx context.Context, out Outcome) {
	s.mu.Lock()
	concerned := s.order != nil && s.order.ID == out.OrderID
	s.mu.Unlock()

	if out.Err != nil {
		s.logger.Info("print attempt failed, items stay pending", "order_id", out.OrderID, "attempt_id", out.AttemptID, "code", Code(out.Err))
	}
	if !concerned {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("cannot refresh after print", "error", err)
	}
}

// MarkDelivered patches the item locally, tells the server and refetches.
// When the refetch fails too the patch is rolled back.
func (s *Session) MarkDelivered(ctx context.Context, itemID uuid.UUID) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.order == nil {
		s.mu.Unlock()
		return ErrNoOrder
	}
	if _, ok := s.order.Item(itemID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: item %s", orderapi.ErrNotFound, itemID)
	}
	s.patchLocked(itemID, itemstatus.Statuses.Delivered.Code())
	s.mu.Unlock()

	_, callErr := s.orders.MarkDelivered(ctx, itemID)
	if err := s.Refresh(ctx); err != nil {
		s.mu.Lock()
		s.rollbackLocked()
		s.mu.Unlock()
		s.logger.Error("cannot refresh after delivery", "item_id", itemID, "error", err)
		if callErr == nil {
			return err
		}
	}
	if callErr != nil {
		return fmt.Errorf("cannot mark delivered: %w", callErr)
	}
	return nil
}

// patchLocked copies the cached order before touching it so a caller holding
// an earlier View keeps its own copy.
func (s *Session) patchLocked(itemID uuid.UUID, status string) {
	order := *s.order
	order.Items = append([]orderapi.Item(nil), s.order.Items...)
	for i := range order.Items {
		if order.Items[i].ID != itemID {
			continue
		}
		if _, ok := s.patches[itemID]; !ok {
			s.patches[itemID] = optimistic{prevStatus: order.Items[i].Status}
		}
		order.Items[i].Status = status
	}
	s.order = &order
}

func (s *Session) rollbackLocked() {
	if s.order == nil || len(s.patches) == 0 {
		s.patches = map[uuid.UUID]optimistic{}
		return
	}
	order := *s.order
	order.Items = append([]orderapi.Item(nil), s.order.Items...)
	for i := range order.Items {
		if p, ok := s.patches[order.Items[i].ID]; ok {
			order.Items[i].Status = p.prevStatus
		}
	}
	s.order = &order
	s.patches = map[uuid.UUID]optimistic{}
}

// Rename sets the nickname. Without an order it is kept for the next create.
func (s *Session) Rename(ctx context.Context, nickname string) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.table == nil {
		s.mu.Unlock()
		return ErrNoTable
	}
	order := s.order
	if order == nil {
		s.nickname = nickname
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if _, err := s.orders.Rename(ctx, order.ID, nickname); err != nil {
		return fmt.Errorf("cannot rename order: %w", err)
	}
	return s.Refresh(ctx)
}

// SetNote sets the table note printed on the first ticket of a new order.
func (s *Session) SetNote(note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return ErrNoTable
	}
	s.note = note
	return nil
}

// Close closes the order and leaves the table. On failure nothing local is
// cleared since the order is still open on the server.
func (s *Session) Close(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	order := s.order
	s.mu.Unlock()

	if order == nil {
		return ErrNoOrder
	}

	if _, err := s.orders.Close(ctx, order.ID); err != nil {
		return fmt.Errorf("cannot close order: %w", err)
	}

	s.mu.Lock()
	s.gen++
	s.table = nil
	s.order = nil
	s.patches = map[uuid.UUID]optimistic{}
	s.nickname = ""
	s.note = ""
	s.draft.Clear()
	s.mu.Unlock()
	return nil
}

// AddProduct adds one unit of a product to the draft. When merged is false
// the unit waits for SaveCustomization or SkipCustomization.
func (s *Session) AddProduct(productID uuid.UUID) (*draft.Item, bool, error) {
	if err := s.requireTable(); err != nil {
		return nil, false, err
	}
	p, ok := s.catalog.DraftProduct(productID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	item, merged := s.draft.Add(p)
	return item, merged, nil
}

func (s *Session) SaveCustomization(patch draft.Patch) (*draft.Item, error) {
	return s.draft.Save(patch)
}

func (s *Session) SkipCustomization() (*draft.Item, error) {
	return s.draft.Skip()
}

func (s *Session) EditDraftItem(id uuid.UUID) (*draft.Item, error) {
	return s.draft.Edit(id)
}

func (s *Session) UpdateDraftQty(id uuid.UUID, qty int) (*draft.Item, error) {
	return s.draft.UpdateQty(id, qty)
}

func (s *Session) RemoveDraftItem(id uuid.UUID) error {
	return s.draft.Remove(id)
}

func (s *Session) requireTable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return ErrNoTable
	}
	return nil
}

// Pending lists the items still waiting for a ticket.
func (s *Session) Pending() []orderapi.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.PendingPrint()
}

// ItemView is an order item as shown to the waiter.
type ItemView struct {
	orderapi.Item
	PendingPrint bool `json:"pending_print"`
	Optimistic   bool `json:"optimistic,omitempty"`
}

type View struct {
	Table        *catalog.Table  `json:"table"`
	Order        *orderapi.Order `json:"order"`
	Items        []ItemView      `json:"items"`
	Nickname     string          `json:"nickname,omitempty"`
	Note         string          `json:"note,omitempty"`
	Draft        []draft.Item    `json:"draft"`
	Customizing  *draft.Pending  `json:"customizing,omitempty"`
	PendingPrint int             `json:"pending_print"`
	Printer      *PrinterHealth  `json:"printer,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		Order:    s.order,
		Nickname: s.nickname,
		Note:     s.note,
		Items:    []ItemView{},
	}
	if s.table != nil {
		t := *s.table
		v.Table = &t
	}
	if s.order != nil {
		for _, item := range s.order.Items {
			_, patched := s.patches[item.ID]
			iv := ItemView{Item: item, PendingPrint: item.PendingPrint(), Optimistic: patched}
			if iv.PendingPrint {
				v.PendingPrint++
			}
			v.Items = append(v.Items, iv)
		}
	}
	s.mu.Unlock()

	v.Draft = s.draft.Items()
	v.Customizing = s.draft.Pending()
	if s.printer != nil {
		h := s.printer.Health()
		v.Printer = &h
	}
	return v
}
