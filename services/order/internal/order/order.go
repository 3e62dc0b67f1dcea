package order

import (
	"fmt"
	"sort"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/enums/itemstatus"
	"github.com/google/uuid"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"

	PrintStatusPending = "pending"
	PrintStatusPartial = "partial"
	PrintStatusPrinted = "printed"
)

// TableRef is the denormalized table the order belongs to.
type TableRef struct {
	ID   uuid.UUID `json:"id" bson:"id"`
	Name string    `json:"name" bson:"name"`
}

// PrintAttempt records one confirmed print. The attempt id is the
// idempotency key of ConfirmPrinted.
type PrintAttempt struct {
	ID          uuid.UUID   `json:"id" bson:"id"`
	ItemIDs     []uuid.UUID `json:"item_ids" bson:"item_ids"`
	ConfirmedAt time.Time   `json:"confirmed_at" bson:"confirmed_at"`
}

// Order is the kitchen order of one table. Items are append-only.
type Order struct {
	ID            uuid.UUID      `json:"id" bson:"_id"`
	Table         TableRef       `json:"table" bson:"table"`
	Nickname      string         `json:"nickname,omitempty" bson:"nickname,omitempty"`
	Note          string         `json:"note,omitempty" bson:"note,omitempty"`
	Items         []OrderItem    `json:"items" bson:"items"`
	Status        string         `json:"status" bson:"status"`
	PrintStatus   string         `json:"print_status" bson:"print_status"`
	PrintAttempts []PrintAttempt `json:"print_attempts,omitempty" bson:"print_attempts,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" bson:"updated_at"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
	ModelVersion  int            `json:"model_version" bson:"model_version"`
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) SetID(id uuid.UUID) {
	o.ID = id
}

func NewOrder(table TableRef) *Order {
	return &Order{
		ID:          aqm.GenerateNewID(),
		Table:       table,
		Items:       []OrderItem{},
		Status:      StatusOpen,
		PrintStatus: PrintStatusPending,
	}
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = aqm.GenerateNewID()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	o.CreatedAt = time.Now()
	o.UpdatedAt = time.Now()
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
}

func (o *Order) IsClosed() bool {
	return o.Status == StatusClosed
}

// Append adds new lines to the order. Existing lines are never touched and an
// appended line is never merged into an existing one, even with an identical
// product and notes.
func (o *Order) Append(items []OrderItem) error {
	if o.IsClosed() {
		return fmt.Errorf("%w: order %s", ErrClosed, o.ID)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: no items to append", ErrInvalid)
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return err
		}
	}
	for _, item := range items {
		item.OrderID = o.ID
		o.Items = append(o.Items, item)
	}
	o.refreshPrintStatus()
	o.BeforeUpdate()
	return nil
}

// ConfirmPrinted flips the given items to printed under attemptID. Replaying an
// attempt id with the same item set is a no-op and returns changed=false.
func (o *Order) ConfirmPrinted(attemptID uuid.UUID, itemIDs []uuid.UUID) (bool, error) {
	if attemptID == uuid.Nil {
		return false, fmt.Errorf("%w: attempt_id is required", ErrInvalid)
	}
	ids := normalizeIDs(itemIDs)
	if len(ids) == 0 {
		return false, fmt.Errorf("%w: item_ids are required", ErrInvalid)
	}

	if prev := o.attempt(attemptID); prev != nil {
		if !sameIDs(prev.ItemIDs, ids) {
			return false, fmt.Errorf("%w: attempt %s", ErrAttemptMismatch, attemptID)
		}
		return false, nil
	}

	for _, id := range ids {
		if o.itemIndex(id) < 0 {
			return false, fmt.Errorf("%w: item %s not in order %s", ErrNotFound, id, o.ID)
		}
	}

	now := time.Now()
	for _, id := range ids {
		o.Items[o.itemIndex(id)].markPrinted(attemptID, now)
	}

	o.PrintAttempts = append(o.PrintAttempts, PrintAttempt{
		ID:          attemptID,
		ItemIDs:     ids,
		ConfirmedAt: now,
	})
	o.refreshPrintStatus()
	o.UpdatedAt = now
	return true, nil
}

// MarkItemDelivered moves one item to delivered. Delivered is terminal, so a
// second call reports changed=false.
func (o *Order) MarkItemDelivered(itemID uuid.UUID) (bool, error) {
	if o.IsClosed() {
		return false, fmt.Errorf("%w: order %s", ErrClosed, o.ID)
	}
	idx := o.itemIndex(itemID)
	if idx < 0 {
		return false, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	if !o.Items[idx].MarkAsDelivered() {
		return false, nil
	}
	o.refreshPrintStatus()
	o.BeforeUpdate()
	return true, nil
}

func (o *Order) Rename(nickname string) error {
	if o.IsClosed() {
		return fmt.Errorf("%w: order %s", ErrClosed, o.ID)
	}
	o.Nickname = nickname
	o.BeforeUpdate()
	return nil
}

// Close is final; a closed order cannot be reopened or appended to.
func (o *Order) Close() error {
	if o.IsClosed() {
		return fmt.Errorf("%w: order %s", ErrClosed, o.ID)
	}
	now := time.Now()
	o.Status = StatusClosed
	o.ClosedAt = &now
	o.UpdatedAt = now
	return nil
}

// Item returns a pointer into Items or nil.
func (o *Order) Item(id uuid.UUID) *OrderItem {
	idx := o.itemIndex(id)
	if idx < 0 {
		return nil
	}
	return &o.Items[idx]
}

// PendingPrint returns the items that still need a ticket: not delivered and
// not printed.
func (o *Order) PendingPrint() []OrderItem {
	var pending []OrderItem
	for _, item := range o.Items {
		if item.PendingPrint() {
			pending = append(pending, item)
		}
	}
	return pending
}

func (o *Order) itemIndex(id uuid.UUID) int {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (o *Order) attempt(id uuid.UUID) *PrintAttempt {
	for i := range o.PrintAttempts {
		if o.PrintAttempts[i].ID == id {
			return &o.PrintAttempts[i]
		}
	}
	return nil
}

func (o *Order) refreshPrintStatus() {
	var total, printed int
	for _, item := range o.Items {
		if item.Status == itemstatus.Statuses.Delivered.Code() && !item.Printed {
			continue
		}
		total++
		if item.Printed {
			printed++
		}
	}
	switch {
	case total > 0 && printed == total:
		o.PrintStatus = PrintStatusPrinted
	case printed > 0:
		o.PrintStatus = PrintStatusPartial
	default:
		o.PrintStatus = PrintStatusPending
	}
}

func normalizeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sameIDs(a, b []uuid.UUID) bool {
	a, b = normalizeIDs(a), normalizeIDs(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
