package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/enums/itemstatus"
	"github.com/google/uuid"
)

// OrderItem is one line of a kitchen order. Lines are never merged server
// side; the waiter merges identical lines in its draft before sending.
type OrderItem struct {
	ID             uuid.UUID  `json:"id" bson:"_id"`
	OrderID        uuid.UUID  `json:"order_id" bson:"order_id"`
	ProductID      uuid.UUID  `json:"product_id" bson:"product_id"`
	Name           string     `json:"name" bson:"name"`
	Category       string     `json:"category,omitempty" bson:"category,omitempty"`
	Quantity       int        `json:"quantity" bson:"quantity"`
	Notes          []string   `json:"notes,omitempty" bson:"notes,omitempty"`
	CustomNote     string     `json:"custom_note,omitempty" bson:"custom_note,omitempty"`
	Status         string     `json:"status" bson:"status"`
	Printed        bool       `json:"printed" bson:"printed"`
	PrintAttemptID *uuid.UUID `json:"print_attempt_id,omitempty" bson:"print_attempt_id,omitempty"`
	PrintedAt      *time.Time `json:"printed_at,omitempty" bson:"printed_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

func (oi *OrderItem) GetID() uuid.UUID {
	return oi.ID
}

func (oi *OrderItem) ResourceType() string {
	return "order-item"
}

// NewOrderItem builds a fresh unprinted line. Client supplied ids and
// statuses are never trusted.
func NewOrderItem(in ItemInput) OrderItem {
	return OrderItem{
		ID:         aqm.GenerateNewID(),
		ProductID:  in.ProductID,
		Name:       strings.TrimSpace(in.Name),
		Category:   strings.TrimSpace(in.Category),
		Quantity:   in.Quantity,
		Notes:      in.Notes,
		CustomNote: strings.TrimSpace(in.CustomNote),
		Status:     itemstatus.Statuses.New.Code(),
		CreatedAt:  time.Now(),
	}
}

func (oi *OrderItem) Validate() error {
	if oi.ProductID == uuid.Nil {
		return fmt.Errorf("%w: product_id is required", ErrInvalid)
	}
	if oi.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if oi.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalid)
	}
	return nil
}

// PendingPrint reports whether the line still needs a kitchen ticket.
func (oi *OrderItem) PendingPrint() bool {
	return oi.Status != itemstatus.Statuses.Delivered.Code() && !oi.Printed
}

// MarkAsDelivered reports false when the line was already delivered.
func (oi *OrderItem) MarkAsDelivered() bool {
	delivered := itemstatus.Statuses.Delivered.Code()
	if oi.Status == delivered || !itemstatus.CanMove(oi.Status, delivered) {
		return false
	}
	now := time.Now()
	oi.Status = delivered
	oi.DeliveredAt = &now
	return true
}

// markPrinted is a no-op for lines already printed by another attempt. A
// delivered line keeps its status.
func (oi *OrderItem) markPrinted(attemptID uuid.UUID, at time.Time) {
	if oi.Printed {
		return
	}
	oi.Printed = true
	oi.PrintAttemptID = &attemptID
	oi.PrintedAt = &at
	if sent := itemstatus.Statuses.Sent.Code(); itemstatus.CanMove(oi.Status, sent) {
		oi.Status = sent
	}
}
