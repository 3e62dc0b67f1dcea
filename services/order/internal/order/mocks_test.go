package order

import (
	"context"
	"sync"

	"github.com/froggyflex/hotelma/pkg"
	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/google/uuid"
)

// MockPublisher is a mock implementation of events.Publisher for testing
type MockPublisher struct {
	mu          sync.Mutex
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
	Topics      []string
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m.mu.Lock()
	m.Topics = append(m.Topics, topic)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	return nil
}

// MockStreamPublisher also implements PublishWithID.
type MockStreamPublisher struct {
	MockPublisher
	MsgIDs []string
}

func (m *MockStreamPublisher) PublishWithID(ctx context.Context, topic, id string, msg []byte) error {
	m.mu.Lock()
	m.MsgIDs = append(m.MsgIDs, id)
	m.mu.Unlock()
	return m.Publish(ctx, topic, msg)
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu         sync.Mutex
	Events     []event.OrderEvent
	Rejections []pkg.OrderTableRejectionEvent
}

func (m *MockNotifier) OrderChanged(_ context.Context, evt event.OrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, evt)
}

func (m *MockNotifier) TableRejected(_ context.Context, evt pkg.OrderTableRejectionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejections = append(m.Rejections, evt)
}

func (m *MockNotifier) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, evt := range m.Events {
		types = append(types, evt.EventType)
	}
	return types
}

// MockOrderRepo is an in-memory OrderRepo that copies on read and write and
// enforces the same open-order uniqueness and version check as the Mongo repo.
type MockOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order

	CreateFunc func(ctx context.Context, order *Order) error
	GetFunc    func(ctx context.Context, id uuid.UUID) (*Order, error)
	SaveFunc   func(ctx context.Context, order *Order) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{
		orders: make(map[uuid.UUID]*Order),
	}
}

func (m *MockOrderRepo) Create(ctx context.Context, order *Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Table.ID == order.Table.ID && o.Status == StatusOpen {
			return ErrConflict
		}
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *MockOrderRepo) FindActiveByTable(ctx context.Context, tableID uuid.UUID) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.Table.ID == tableID && o.Status == StatusOpen {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepo) FindByItemID(ctx context.Context, itemID uuid.UUID) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.Item(itemID) != nil {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepo) ListActive(ctx context.Context) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Order
	for _, o := range m.orders {
		if o.Status == StatusOpen {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, order *Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.ModelVersion != order.ModelVersion {
		return ErrVersionConflict
	}
	order.ModelVersion++
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockOrderRepo) Stored(id uuid.UUID) *Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.orders[id]; ok {
		return cloneOrder(o)
	}
	return nil
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.Notes = append([]string(nil), item.Notes...)
		c.Items[i] = item
	}
	c.PrintAttempts = make([]PrintAttempt, len(o.PrintAttempts))
	for i, pa := range o.PrintAttempts {
		pa.ItemIDs = append([]uuid.UUID(nil), pa.ItemIDs...)
		c.PrintAttempts[i] = pa
	}
	return &c
}
