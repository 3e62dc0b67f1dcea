package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return New(server.URL, server.Client(), nil)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestNewClientNilConfig(t *testing.T) {
	if _, err := NewClient(nil, nil); err == nil {
		t.Error("NewClient() with nil config should return error")
	}
}

func TestClientActive(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()

	tests := []struct {
		name    string
		data    interface{}
		wantNil bool
	}{
		{
			name: "withOrder",
			data: map[string]interface{}{"order": Order{ID: orderID, Table: TableRef{ID: tableID, Name: "T4"}, Status: "open"}},
		},
		{
			name:    "noOrder",
			data:    map[string]interface{}{"order": nil},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("Method = %s, want GET", r.Method)
				}
				if r.URL.Path != "/orders/active" {
					t.Errorf("Path = %s, want /orders/active", r.URL.Path)
				}
				if got := r.URL.Query().Get("table_id"); got != tableID.String() {
					t.Errorf("table_id = %s, want %s", got, tableID)
				}
				respondData(w, http.StatusOK, tt.data)
			})

			order, err := client.Active(context.Background(), tableID)
			if err != nil {
				t.Fatalf("Active() error = %v", err)
			}
			if tt.wantNil {
				if order != nil {
					t.Errorf("Active() = %+v, want nil", order)
				}
				return
			}
			if order == nil || order.ID != orderID {
				t.Fatalf("Active() = %+v, want order %s", order, orderID)
			}
			if order.Table.Name != "T4" {
				t.Errorf("Table.Name = %q, want T4", order.Table.Name)
			}
		})
	}
}

func TestClientCreate(t *testing.T) {
	tableID := uuid.New()
	productID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("request = %s %s, want POST /orders", r.Method, r.URL.Path)
		}
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.Table.ID != tableID || len(req.Items) != 1 || req.Items[0].Quantity != 2 {
			t.Errorf("body = %+v", req)
		}
		respondData(w, http.StatusCreated, Order{
			ID:     uuid.New(),
			Table:  req.Table,
			Status: "open",
			Items:  []Item{{ID: uuid.New(), ProductID: productID, Quantity: 2, Status: "new"}},
		})
	})

	order, err := client.Create(context.Background(), CreateRequest{
		Table: TableRef{ID: tableID, Name: "T1"},
		Items: []ItemInput{{ProductID: productID, Name: "Freddo", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(order.PendingPrint()) != 1 {
		t.Errorf("PendingPrint() = %d items, want 1", len(order.PendingPrint()))
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "conflict", status: http.StatusConflict, wantErr: ErrConflict},
		{name: "notFound", status: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "badRequest", status: http.StatusBadRequest, wantErr: ErrInvalid},
		{name: "serverError", status: http.StatusInternalServerError, wantErr: ErrNetwork},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"boom"}}`))
			})

			_, err := client.Create(context.Background(), CreateRequest{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.Message != "boom" {
				t.Errorf("StatusError = %+v, want message boom", se)
			}
		})
	}
}

func TestClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(url, nil, nil)

	_, err := client.Active(context.Background(), uuid.New())
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Active() error = %v, want ErrNetwork", err)
	}
}

func TestClientConfirmPrinted(t *testing.T) {
	orderID := uuid.New()
	attemptID := uuid.New()
	itemIDs := []uuid.UUID{uuid.New(), uuid.New()}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders/"+orderID.String()+"/printed" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			ItemIDs   []uuid.UUID `json:"item_ids"`
			AttemptID uuid.UUID   `json:"attempt_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.AttemptID != attemptID || len(body.ItemIDs) != 2 {
			t.Errorf("body = %+v", body)
		}
		respondData(w, http.StatusOK, Order{ID: orderID, PrintStatus: "printed"})
	})

	order, err := client.ConfirmPrinted(context.Background(), orderID, itemIDs, attemptID)
	if err != nil {
		t.Fatalf("ConfirmPrinted() error = %v", err)
	}
	if order.PrintStatus != "printed" {
		t.Errorf("PrintStatus = %q, want printed", order.PrintStatus)
	}
}

func TestClientRoutes(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()

	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
	}{
		{
			name:       "append",
			call:       func(c *Client) error { _, err := c.Append(context.Background(), orderID, []ItemInput{{Quantity: 1}}); return err },
			wantMethod: http.MethodPost,
			wantPath:   "/orders/" + orderID.String() + "/items",
		},
		{
			name:       "markDelivered",
			call:       func(c *Client) error { _, err := c.MarkDelivered(context.Background(), itemID); return err },
			wantMethod: http.MethodPatch,
			wantPath:   "/items/" + itemID.String() + "/deliver",
		},
		{
			name:       "rename",
			call:       func(c *Client) error { _, err := c.Rename(context.Background(), orderID, "Smith"); return err },
			wantMethod: http.MethodPatch,
			wantPath:   "/orders/" + orderID.String() + "/nickname",
		},
		{
			name:       "close",
			call:       func(c *Client) error { _, err := c.Close(context.Background(), orderID); return err },
			wantMethod: http.MethodPost,
			wantPath:   "/orders/" + orderID.String() + "/close",
		},
		{
			name:       "get",
			call:       func(c *Client) error { _, err := c.Get(context.Background(), orderID); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/orders/" + orderID.String(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.wantMethod || r.URL.Path != tt.wantPath {
					t.Errorf("request = %s %s, want %s %s", r.Method, r.URL.Path, tt.wantMethod, tt.wantPath)
				}
				respondData(w, http.StatusOK, Order{ID: orderID})
			})

			if err := tt.call(client); err != nil {
				t.Errorf("call error = %v", err)
			}
		})
	}
}

func TestClientActiveTables(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/active-tables" {
			t.Errorf("Path = %s", r.URL.Path)
		}
		respondData(w, http.StatusOK, []ActiveTable{
			{TableID: uuid.New(), TableName: "T1", PendingPrint: 2},
			{TableID: uuid.New(), TableName: "T2"},
		})
	})

	tables, err := client.ActiveTables(context.Background())
	if err != nil {
		t.Fatalf("ActiveTables() error = %v", err)
	}
	if len(tables) != 2 || tables[0].PendingPrint != 2 {
		t.Errorf("ActiveTables() = %+v", tables)
	}
}

func TestItemPendingPrint(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{name: "newUnprinted", item: Item{Status: "new"}, want: true},
		{name: "sentUnprinted", item: Item{Status: "sent"}, want: true},
		{name: "printed", item: Item{Status: "sent", Printed: true}, want: false},
		{name: "deliveredUnprinted", item: Item{Status: "delivered"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.PendingPrint(); got != tt.want {
				t.Errorf("PendingPrint() = %v, want %v", got, tt.want)
			}
		})
	}
}
