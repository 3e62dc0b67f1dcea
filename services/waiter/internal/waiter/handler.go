package waiter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/froggyflex/hotelma/services/waiter/internal/bridge"
	"github.com/froggyflex/hotelma/services/waiter/internal/catalog"
	"github.com/froggyflex/hotelma/services/waiter/internal/draft"
	"github.com/froggyflex/hotelma/services/waiter/internal/feed"
	"github.com/froggyflex/hotelma/services/waiter/internal/orderapi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	MaxBodyBytes   = 1 << 20
	TerminalHeader = "X-Terminal-ID"
)

// CatalogReader is the catalog as listed to terminals.
type CatalogReader interface {
	Catalog
	Products() []catalog.Product
	Tables() []catalog.Table
	Reload(ctx context.Context) error
}

type Handler struct {
	logger   aqm.Logger
	tlm      *telemetry.HTTP
	sessions *Sessions
	catalog  CatalogReader
	orders   OrderAPI
	printer  *Printer
	feed     feed.Source
}

func NewHandler(sessions *Sessions, cat CatalogReader, orders OrderAPI, printer *Printer, source feed.Source, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		logger:   logger,
		tlm:      telemetry.NewHTTP(),
		sessions: sessions,
		catalog:  cat,
		orders:   orders,
		printer:  printer,
		feed:     source,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tables", h.ListTables)
	r.Get("/products", h.ListProducts)
	r.Post("/catalog/reload", h.ReloadCatalog)
	r.Get("/printer/health", h.PrinterHealth)

	if h.feed != nil {
		r.Get("/events", NewSSEHandler(h.feed, h.logger).ServeHTTP)
	}

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/table", h.SelectTable)
		r.Post("/refresh", h.Refresh)
		r.Post("/send", h.Send)
		r.Post("/print/retry", h.RetryPrint)
		r.Patch("/nickname", h.Rename)
		r.Patch("/note", h.SetNote)
		r.Post("/close", h.Close)
		r.Post("/items/{id}/deliver", h.MarkDelivered)

		r.Route("/draft", func(r chi.Router) {
			r.Post("/items", h.AddDraftItem)
			r.Patch("/items/{id}", h.UpdateDraftItem)
			r.Delete("/items/{id}", h.RemoveDraftItem)
			r.Post("/items/{id}/edit", h.EditDraftItem)
			r.Post("/pending", h.SaveCustomization)
			r.Delete("/pending", h.SkipCustomization)
		})
	})
}

type SelectTableRequest struct {
	TableID uuid.UUID `json:"table_id"`
}

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
}

type UpdateQtyRequest struct {
	Qty int `json:"qty"`
}

type NicknameRequest struct {
	Nickname string `json:"nickname"`
}

type NoteRequest struct {
	Note string `json:"note"`
}

// TableStatus is a catalog table with its open order, if any.
type TableStatus struct {
	catalog.Table
	OrderID      *uuid.UUID `json:"order_id,omitempty"`
	Nickname     string     `json:"nickname,omitempty"`
	PendingPrint int        `json:"pending_print"`
	PrintStatus  string     `json:"print_status,omitempty"`
}

type DraftResponse struct {
	Item    *draft.Item `json:"item,omitempty"`
	Merged  bool        `json:"merged"`
	Session View        `json:"session"`
}

type SendResponse struct {
	Created    bool      `json:"created"`
	Print      *Dispatch `json:"print,omitempty"`
	PrintError string    `json:"print_error,omitempty"`
	PrintCode  string    `json:"print_code,omitempty"`
	Session    View      `json:"session"`
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTables")
	defer finish()

	log := h.log(r)

	active, err := h.orders.ActiveTables(r.Context())
	if err != nil {
		h.respondError(w, log, err, "Could not retrieve active tables")
		return
	}

	byTable := make(map[uuid.UUID]orderapi.ActiveTable, len(active))
	for _, a := range active {
		byTable[a.TableID] = a
	}

	tables := h.catalog.Tables()
	out := make([]TableStatus, 0, len(tables))
	for _, t := range tables {
		st := TableStatus{Table: t}
		if a, ok := byTable[t.ID]; ok {
			id := a.OrderID
			st.OrderID = &id
			st.Nickname = a.Nickname
			st.PendingPrint = a.PendingPrint
			st.PrintStatus = a.PrintStatus
		}
		out = append(out, st)
	}

	aqm.RespondCollection(w, out, "table")
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListProducts")
	defer finish()

	aqm.RespondCollection(w, h.catalog.Products(), "product")
}

func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReloadCatalog")
	defer finish()

	log := h.log(r)

	if err := h.catalog.Reload(r.Context()); err != nil {
		log.Error("cannot reload catalog", "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not reload catalog")
		return
	}

	aqm.RespondSuccess(w, map[string]int{
		"products": len(h.catalog.Products()),
		"tables":   len(h.catalog.Tables()),
	})
}

func (h *Handler) PrinterHealth(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PrinterHealth")
	defer finish()

	if h.printer == nil {
		aqm.RespondSuccess(w, PrinterHealth{Bridge: bridge.NameOf(bridge.Null{})})
		return
	}
	aqm.RespondSuccess(w, h.printer.Health())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSession")
	defer finish()

	aqm.RespondSuccess(w, h.session(r).View())
}

func (h *Handler) SelectTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SelectTable")
	defer finish()

	log := h.log(r)

	var req SelectTableRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	s := h.session(r)
	if err := s.SelectTable(r.Context(), req.TableID); err != nil {
		h.respondError(w, log, err, "Could not select table")
		return
	}

	aqm.RespondSuccess(w, s.View())
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Refresh")
	defer finish()

	log := h.log(r)

	s := h.session(r)
	if err := s.Refresh(r.Context()); err != nil {
		h.respondError(w, log, err, "Could not refresh order")
		return
	}

	aqm.RespondSuccess(w, s.View())
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Send")
	defer finish()

	log := h.log(r)

	s := h.session(r)
	res, err := s.Send(r.Context())
	if err != nil {
		h.respondError(w, log, err, "Could not send order")
		return
	}

	resp := SendResponse{Created: res.Created, Print: res.Print, Session: s.View()}
	if res.PrintErr != nil {
		resp.PrintError = res.PrintErr.Error()
		resp.PrintCode = Code(res.PrintErr)
	}
	aqm.RespondSuccess(w, resp)
}

func (h *Handler) RetryPrint(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RetryPrint")
	defer finish()

	log := h.log(r)

	d, err := h.session(r).RetryPrint(r.Context())
	if err != nil {
		h.respondError(w, log, err, "Could not retry print")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	aqm.RespondSuccess(w, d)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Rename")
	defer finish()

	log := h.log(r)

	var req NicknameRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	s := h.session(r)
	if err := s.Rename(r.Context(), req.Nickname); err != nil {
		h.respondError(w, log, err, "Could not rename order")
		return
	}

	aqm.RespondSuccess(w, s.View())
}

func (h *Handler) SetNote(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetNote")
	defer finish()

	log := h.log(r)

	var req NoteRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	s := h.session(r)
	if err := s.SetNote(req.Note); err != nil {
		h.respondError(w, log, err, "Could not set note")
		return
	}

	aqm.RespondSuccess(w, s.View())
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Close")
	defer finish()

	log := h.log(r)

	s := h.session(r)
	if err := s.Close(r.Context()); err != nil {
		h.respondError(w, log, err, "Could not close order")
		return
	}

	aqm.RespondSuccess(w, s.View())
}

func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MarkDelivered")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	s := h.session(r)
	if err := s.MarkDelivered(r.Context(), id); err != nil {
		h.respondError(w, log, err, "Could not mark item delivered")
		return
	}

	aqm.RespondSuccess(w, s.View())
}

func (h *Handler) AddDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddDraftItem")
	defer finish()

	log := h.log(r)

	var req AddItemRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	s := h.session(r)
	item, merged, err := s.AddProduct(req.ProductID)
	if err != nil {
		h.respondError(w, log, err, "Could not add item")
		return
	}

	aqm.RespondSuccess(w, DraftResponse{Item: item, Merged: merged, Session: s.View()})
}

func (h *Handler) UpdateDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateDraftItem")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req UpdateQtyRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	s := h.session(r)
	item, err := s.UpdateDraftQty(id, req.Qty)
	if err != nil {
		h.respondError(w, log, err, "Could not update item")
		return
	}

	aqm.RespondSuccess(w, DraftResponse{Item: item, Session: s.View()})
}

func (h *Handler) RemoveDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveDraftItem")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	s := h.session(r)
	if err := s.RemoveDraftItem(id); err != nil {
		h.respondError(w, log, err, "Could not remove item")
		return
	}

	aqm.RespondSuccess(w, DraftResponse{Session: s.View()})
}

func (h *Handler) EditDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.EditDraftItem")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	s := h.session(r)
	item, err := s.EditDraftItem(id)
	if err != nil {
		h.respondError(w, log, err, "Could not edit item")
		return
	}

	aqm.RespondSuccess(w, DraftResponse{Item: item, Session: s.View()})
}

func (h *Handler) SaveCustomization(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SaveCustomization")
	defer finish()

	log := h.log(r)

	var patch draft.Patch
	if !h.decodePayload(w, r, log, &patch) {
		return
	}

	s := h.session(r)
	item, err := s.SaveCustomization(patch)
	if err != nil {
		h.respondError(w, log, err, "Could not save item")
		return
	}

	aqm.RespondSuccess(w, DraftResponse{Item: item, Merged: true, Session: s.View()})
}

func (h *Handler) SkipCustomization(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SkipCustomization")
	defer finish()

	log := h.log(r)

	s := h.session(r)
	item, err := s.SkipCustomization()
	if err != nil {
		h.respondError(w, log, err, "Could not skip customization")
		return
	}

	aqm.RespondSuccess(w, DraftResponse{Item: item, Merged: true, Session: s.View()})
}

// Helper methods
func (h *Handler) session(r *http.Request) *Session {
	terminal := r.Header.Get(TerminalHeader)
	if terminal == "" {
		terminal = r.URL.Query().Get("terminal")
	}
	return h.sessions.Get(terminal)
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log aqm.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "id", idStr)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, log aqm.Logger, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dest); err != nil {
		log.Debug("failed to decode request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}

	return true
}

// respondError prefixes the message with the error code the terminal uses to
// pick its banner.
func (h *Handler) respondError(w http.ResponseWriter, log aqm.Logger, err error, fallback string) {
	code := Code(err)
	switch code {
	case CodeInvalid:
		log.Debug("invalid waiter request", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, code+": "+err.Error())
	case CodeNotFound:
		aqm.RespondError(w, http.StatusNotFound, code+": "+err.Error())
	case CodeConflict:
		log.Info("order conflict", "error", err)
		aqm.RespondError(w, http.StatusConflict, code+": "+err.Error())
	case CodeNetwork:
		log.Error(fallback, "error", err)
		aqm.RespondError(w, http.StatusBadGateway, code+": "+fallback)
	case CodeBridgeUnavailable, CodePrintInProgress, CodePrintFailed:
		log.Error(fallback, "error", err)
		aqm.RespondError(w, http.StatusServiceUnavailable, code+": "+err.Error())
	default:
		log.Error(fallback, "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}
