package waiter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/froggyflex/hotelma/services/waiter/internal/bridge"
	"github.com/froggyflex/hotelma/services/waiter/internal/catalog"
	"github.com/froggyflex/hotelma/services/waiter/internal/draft"
	"github.com/froggyflex/hotelma/services/waiter/internal/orderapi"
	"github.com/froggyflex/hotelma/services/waiter/internal/printq"
	"github.com/google/uuid"
)

var (
	tableT1  = catalog.Table{ID: uuid.MustParse("5c3d1a2b-0000-4000-8000-000000000001"), Name: "T1", Active: true}
	tableT2  = catalog.Table{ID: uuid.MustParse("5c3d1a2b-0000-4000-8000-000000000002"), Name: "T2", Active: true}
	cokeID   = uuid.MustParse("5c3d1a2b-0000-4000-8000-000000000101")
	freddoID = uuid.MustParse("5c3d1a2b-0000-4000-8000-000000000102")
	burgerID = uuid.MustParse("5c3d1a2b-0000-4000-8000-000000000103")
)

// MockCatalog serves fixed products and tables.
type MockCatalog struct {
	products   map[uuid.UUID]draft.Product
	tables     map[uuid.UUID]catalog.Table
	ReloadFunc func(ctx context.Context) error
}

func newMockCatalog() *MockCatalog {
	return &MockCatalog{
		products: map[uuid.UUID]draft.Product{
			cokeID:   {ID: cokeID, Name: "Coke", Category: "Drinks"},
			freddoID: {ID: freddoID, Name: "Freddo Espresso", Category: "Coffee", NoteTemplates: []string{"Medium sugar", "No sugar"}},
			burgerID: {ID: burgerID, Name: "Burger", Category: "Grill", AllowCustomNote: true},
		},
		tables: map[uuid.UUID]catalog.Table{tableT1.ID: tableT1, tableT2.ID: tableT2},
	}
}

func (m *MockCatalog) DraftProduct(id uuid.UUID) (draft.Product, bool) {
	p, ok := m.products[id]
	return p, ok
}

func (m *MockCatalog) Table(id uuid.UUID) (catalog.Table, bool) {
	t, ok := m.tables[id]
	return t, ok
}

func (m *MockCatalog) ProductCategory(id uuid.UUID) string {
	return m.products[id].Category
}

func (m *MockCatalog) Products() []catalog.Product {
	out := []catalog.Product{}
	for _, p := range m.products {
		out = append(out, catalog.Product{ID: p.ID, Name: p.Name, Category: p.Category, Active: true})
	}
	return out
}

func (m *MockCatalog) Tables() []catalog.Table {
	return []catalog.Table{tableT1, tableT2}
}

func (m *MockCatalog) Reload(ctx context.Context) error {
	if m.ReloadFunc != nil {
		return m.ReloadFunc(ctx)
	}
	return nil
}

// MockOrderAPI is an in-memory order service. The Func hooks replace the
// default behavior of a single call.
type MockOrderAPI struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*orderapi.Order
	attempts map[uuid.UUID][]uuid.UUID

	ActiveFunc         func(ctx context.Context, tableID uuid.UUID) (*orderapi.Order, error)
	CreateFunc         func(ctx context.Context, req orderapi.CreateRequest) (*orderapi.Order, error)
	AppendFunc         func(ctx context.Context, orderID uuid.UUID, items []orderapi.ItemInput) (*orderapi.Order, error)
	ConfirmPrintedFunc func(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID, attemptID uuid.UUID) (*orderapi.Order, error)
	MarkDeliveredFunc  func(ctx context.Context, itemID uuid.UUID) (*orderapi.Order, error)
	CloseFunc          func(ctx context.Context, orderID uuid.UUID) (*orderapi.Order, error)

	ActiveCalls   int
	CreateCalls   int
	AppendCalls   int
	Confirmations []Dispatch
}

func NewMockOrderAPI() *MockOrderAPI {
	return &MockOrderAPI{
		orders:   map[uuid.UUID]*orderapi.Order{},
		attempts: map[uuid.UUID][]uuid.UUID{},
	}
}

func cloneOrder(o *orderapi.Order) *orderapi.Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]orderapi.Item, len(o.Items))
	for i, item := range o.Items {
		item.Notes = append([]string(nil), item.Notes...)
		c.Items[i] = item
	}
	return &c
}

// Seed opens an order directly in the store, as another terminal would.
func (m *MockOrderAPI) Seed(table catalog.Table, items ...orderapi.ItemInput) *orderapi.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.openLocked(orderapi.TableRef{ID: table.ID, Name: table.Name}, "", items)
	return cloneOrder(o)
}

func (m *MockOrderAPI) openLocked(table orderapi.TableRef, nickname string, items []orderapi.ItemInput) *orderapi.Order {
	o := &orderapi.Order{ID: uuid.New(), Table: table, Nickname: nickname, Status: "open", PrintStatus: "pending", CreatedAt: time.Now()}
	m.appendLocked(o, items)
	m.orders[o.ID] = o
	return o
}

func (m *MockOrderAPI) appendLocked(o *orderapi.Order, items []orderapi.ItemInput) {
	for _, in := range items {
		o.Items = append(o.Items, orderapi.Item{
			ID:         uuid.New(),
			OrderID:    o.ID,
			ProductID:  in.ProductID,
			Name:       in.Name,
			Category:   in.Category,
			Quantity:   in.Quantity,
			Notes:      in.Notes,
			CustomNote: in.CustomNote,
			Status:     "new",
		})
	}
	o.ModelVersion++
}

func (m *MockOrderAPI) activeLocked(tableID uuid.UUID) *orderapi.Order {
	for _, o := range m.orders {
		if o.Table.ID == tableID && o.Status == "open" {
			return o
		}
	}
	return nil
}

func (m *MockOrderAPI) Stored(orderID uuid.UUID) *orderapi.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneOrder(m.orders[orderID])
}

func (m *MockOrderAPI) Active(ctx context.Context, tableID uuid.UUID) (*orderapi.Order, error) {
	m.mu.Lock()
	m.ActiveCalls++
	fn := m.ActiveFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, tableID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneOrder(m.activeLocked(tableID)), nil
}

func (m *MockOrderAPI) Create(ctx context.Context, req orderapi.CreateRequest) (*orderapi.Order, error) {
	m.mu.Lock()
	m.CreateCalls++
	fn := m.CreateFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeLocked(req.Table.ID) != nil {
		return nil, &orderapi.StatusError{StatusCode: 409, Message: "table already has an open order"}
	}
	o := m.openLocked(req.Table, req.Nickname, req.Items)
	o.Note = req.Note
	return cloneOrder(o), nil
}

func (m *MockOrderAPI) Append(ctx context.Context, orderID uuid.UUID, items []orderapi.ItemInput) (*orderapi.Order, error) {
	m.mu.Lock()
	m.AppendCalls++
	fn := m.AppendFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, orderID, items)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, orderapi.ErrNotFound
	}
	if o.Status != "open" {
		return nil, &orderapi.StatusError{StatusCode: 409, Message: "order is closed"}
	}
	m.appendLocked(o, items)
	return cloneOrder(o), nil
}

func (m *MockOrderAPI) ConfirmPrinted(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID, attemptID uuid.UUID) (*orderapi.Order, error) {
	m.mu.Lock()
	m.Confirmations = append(m.Confirmations, Dispatch{AttemptID: attemptID, OrderID: orderID, ItemIDs: itemIDs})
	fn := m.ConfirmPrintedFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, orderID, itemIDs, attemptID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, orderapi.ErrNotFound
	}
	if _, seen := m.attempts[attemptID]; seen {
		return cloneOrder(o), nil
	}
	m.attempts[attemptID] = itemIDs
	for _, id := range itemIDs {
		for i := range o.Items {
			if o.Items[i].ID == id && !o.Items[i].Printed {
				o.Items[i].Printed = true
				if o.Items[i].Status == "new" {
					o.Items[i].Status = "sent"
				}
			}
		}
	}
	o.ModelVersion++
	return cloneOrder(o), nil
}

func (m *MockOrderAPI) MarkDelivered(ctx context.Context, itemID uuid.UUID) (*orderapi.Order, error) {
	m.mu.Lock()
	fn := m.MarkDeliveredFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, itemID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items[i].Status = "delivered"
				o.ModelVersion++
				return cloneOrder(o), nil
			}
		}
	}
	return nil, orderapi.ErrNotFound
}

func (m *MockOrderAPI) Rename(ctx context.Context, orderID uuid.UUID, nickname string) (*orderapi.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, orderapi.ErrNotFound
	}
	o.Nickname = nickname
	return cloneOrder(o), nil
}

func (m *MockOrderAPI) Close(ctx context.Context, orderID uuid.UUID) (*orderapi.Order, error) {
	m.mu.Lock()
	fn := m.CloseFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, orderID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, orderapi.ErrNotFound
	}
	o.Status = "closed"
	return cloneOrder(o), nil
}

func (m *MockOrderAPI) ActiveTables(ctx context.Context) ([]orderapi.ActiveTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orderapi.ActiveTable
	for _, o := range m.orders {
		if o.Status != "open" {
			continue
		}
		out = append(out, orderapi.ActiveTable{
			TableID:      o.Table.ID,
			TableName:    o.Table.Name,
			OrderID:      o.ID,
			Nickname:     o.Nickname,
			PendingPrint: len(o.PendingPrint()),
			PrintStatus:  o.PrintStatus,
		})
	}
	return out, nil
}

func (m *MockOrderAPI) ConfirmationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Confirmations)
}

// MockSource is a feed.Source driven by the test.
type MockSource struct {
	mu   sync.Mutex
	subs map[string]chan event.OrderEvent
}

func NewMockSource() *MockSource {
	return &MockSource{subs: map[string]chan event.OrderEvent{}}
}

func (m *MockSource) Start(ctx context.Context) error { return nil }

func (m *MockSource) Stop(ctx context.Context) error { return nil }

func (m *MockSource) Subscribe(id string) <-chan event.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan event.OrderEvent, 10)
	m.subs[id] = ch
	return ch
}

func (m *MockSource) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}

func (m *MockSource) Emit(evt event.OrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		ch <- evt
	}
}

type fixture struct {
	orders  *MockOrderAPI
	catalog *MockCatalog
	bridge  *bridge.Recorder
	queue   *printq.Queue
	printer *Printer
	session *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:  NewMockOrderAPI(),
		catalog: newMockCatalog(),
		bridge:  bridge.NewRecorder(),
		queue:   printq.New(printq.WithCooldown(0)),
	}
	f.printer = NewPrinter(f.queue, f.bridge, f.orders, f.catalog, PrinterConfig{Location: time.UTC}, nil)
	f.session = NewSession(f.orders, f.catalog, f.printer, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		f.queue.Close(ctx)
	})
	return f
}

// settle waits until the print queue has nothing left to do.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !f.queue.Busy() && f.queue.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("print queue did not settle")
}

func (f *fixture) selectTable(t *testing.T, table catalog.Table) {
	t.Helper()
	if err := f.session.SelectTable(context.Background(), table.ID); err != nil {
		t.Fatalf("SelectTable() error = %v", err)
	}
}

func (f *fixture) add(t *testing.T, productID uuid.UUID) {
	t.Helper()
	if _, _, err := f.session.AddProduct(productID); err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}
}

func failWith(code string) func(context.Context, string) (bridge.Result, error) {
	return func(context.Context, string) (bridge.Result, error) {
		return bridge.Result{Code: code}, nil
	}
}

var errBoom = fmt.Errorf("boom")

func (m *MockSource) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// CloseAll ends every subscription as a stopping feed would.
func (m *MockSource) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}
