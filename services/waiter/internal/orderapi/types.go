package orderapi

import (
	"time"

	"github.com/froggyflex/hotelma/pkg/enums/itemstatus"
	"github.com/google/uuid"
)

type TableRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Order mirrors the aggregate served by the order service.
type Order struct {
	ID           uuid.UUID `json:"id"`
	Table        TableRef  `json:"table"`
	Nickname     string    `json:"nickname,omitempty"`
	Note         string    `json:"note,omitempty"`
	Items        []Item    `json:"items"`
	Status       string    `json:"status"`
	PrintStatus  string    `json:"print_status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ModelVersion int       `json:"model_version"`
}

type Item struct {
	ID             uuid.UUID  `json:"id"`
	OrderID        uuid.UUID  `json:"order_id"`
	ProductID      uuid.UUID  `json:"product_id"`
	Name           string     `json:"name"`
	Category       string     `json:"category,omitempty"`
	Quantity       int        `json:"quantity"`
	Notes          []string   `json:"notes,omitempty"`
	CustomNote     string     `json:"custom_note,omitempty"`
	Status         string     `json:"status"`
	Printed        bool       `json:"printed"`
	PrintAttemptID *uuid.UUID `json:"print_attempt_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// PendingPrint reports whether the item still needs a ticket.
func (i Item) PendingPrint() bool {
	return i.Status != itemstatus.Statuses.Delivered.Code() && !i.Printed
}

func (i Item) Delivered() bool {
	return i.Status == itemstatus.Statuses.Delivered.Code()
}

func (o *Order) PendingPrint() []Item {
	if o == nil {
		return nil
	}
	var pending []Item
	for _, item := range o.Items {
		if item.PendingPrint() {
			pending = append(pending, item)
		}
	}
	return pending
}

func (o *Order) Item(id uuid.UUID) (Item, bool) {
	if o == nil {
		return Item{}, false
	}
	for _, item := range o.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

type ItemInput struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category,omitempty"`
	Quantity   int       `json:"quantity"`
	Notes      []string  `json:"notes,omitempty"`
	CustomNote string    `json:"custom_note,omitempty"`
}

type CreateRequest struct {
	Table    TableRef    `json:"table"`
	Nickname string      `json:"nickname,omitempty"`
	Note     string      `json:"note,omitempty"`
	Items    []ItemInput `json:"items"`
}

type ActiveTable struct {
	TableID      uuid.UUID `json:"table_id"`
	TableName    string    `json:"table_name"`
	OrderID      uuid.UUID `json:"order_id"`
	Nickname     string    `json:"nickname,omitempty"`
	PendingPrint int       `json:"pending_print"`
	PrintStatus  string    `json:"print_status"`
}
