// Package orderapi is the waiter side HTTP client of the order service.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

var (
	ErrNetwork  = errors.New("order service unreachable")
	ErrConflict = errors.New("order conflict")
	ErrNotFound = errors.New("order not found")
	ErrInvalid  = errors.New("invalid order request")
)

// StatusError is a non-2xx answer from the order service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusConflict:
		return ErrConflict
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalid
	default:
		return ErrNetwork
	}
}

// Client calls the order service REST API.
type Client struct {
	httpClient *http.Client
	orderURL   string
	logger     aqm.Logger
}

func NewClient(config *aqm.Config, logger aqm.Logger) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	orderURL, _ := config.GetString("services.order.url")
	if orderURL == "" {
		return nil, fmt.Errorf("services.order.url not configured")
	}

	return New(orderURL, &http.Client{Timeout: 10 * time.Second}, logger), nil
}

func New(orderURL string, httpClient *http.Client, logger aqm.Logger) *Client {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		orderURL:   strings.TrimRight(orderURL, "/"),
		logger:     logger,
	}
}

// Active returns the open order of a table, or nil when the table has none.
func (c *Client) Active(ctx context.Context, tableID uuid.UUID) (*Order, error) {
	path := "/orders/active?table_id=" + url.QueryEscape(tableID.String())

	var wrapper struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Order, nil
}

func (c *Client) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID.String(), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Create opens a new order. ErrConflict means the table already has one.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Append(ctx context.Context, orderID uuid.UUID, items []ItemInput) (*Order, error) {
	body := struct {
		Items []ItemInput `json:"items"`
	}{Items: items}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+orderID.String()+"/items", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ConfirmPrinted is safe to repeat with the same attempt id.
func (c *Client) ConfirmPrinted(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID, attemptID uuid.UUID) (*Order, error) {
	body := struct {
		ItemIDs   []uuid.UUID `json:"item_ids"`
		AttemptID uuid.UUID   `json:"attempt_id"`
	}{ItemIDs: itemIDs, AttemptID: attemptID}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+orderID.String()+"/printed", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) MarkDelivered(ctx context.Context, itemID uuid.UUID) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPatch, "/items/"+itemID.String()+"/deliver", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Rename(ctx context.Context, orderID uuid.UUID, nickname string) (*Order, error) {
	body := struct {
		Nickname string `json:"nickname"`
	}{Nickname: nickname}

	var order Order
	if err := c.do(ctx, http.MethodPatch, "/orders/"+orderID.String()+"/nickname", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Close(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+orderID.String()+"/close", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ActiveTables(ctx context.Context) ([]ActiveTable, error) {
	var tables []ActiveTable
	if err := c.do(ctx, http.MethodGet, "/orders/active-tables", nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.orderURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
		c.logger.Debug("order service request failed", "method", method, "path", path, "status", resp.StatusCode)
		return err
	}

	if dest == nil {
		return nil
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrNetwork, err)
	}
	if len(wrapper.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(wrapper.Data, dest); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrNetwork, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error interface{} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != nil {
		switch v := body.Error.(type) {
		case string:
			return v
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok {
				return msg
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
