package order

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger  aqm.Logger
	config  *aqm.Config
	tlm     *telemetry.HTTP
	service *Service
}

func NewHandler(service *Service, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		config:  config,
		logger:  logger,
		tlm:     telemetry.NewHTTP(),
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/active", h.GetActiveOrder)
		r.Get("/active-tables", h.ListActiveTables)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/items", h.AppendItems)
		r.Post("/{id}/printed", h.ConfirmPrinted)
		r.Patch("/{id}/nickname", h.RenameOrder)
		r.Post("/{id}/close", h.CloseOrder)
	})

	r.Route("/items", func(r chi.Router) {
		r.Patch("/{id}/deliver", h.MarkItemDelivered)
	})
}

type AppendRequest struct {
	Items []ItemInput `json:"items"`
}

type ConfirmPrintedRequest struct {
	ItemIDs   []uuid.UUID `json:"item_ids"`
	AttemptID uuid.UUID   `json:"attempt_id"`
}

type RenameRequest struct {
	Nickname string `json:"nickname"`
}

// ActiveOrderResponse carries a null order when the table has none, so
// "no order" is not confused with a failed request.
type ActiveOrderResponse struct {
	Order *Order `json:"order"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	log := h.log(r)

	var req CreateRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	order, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not create order")
		return
	}

	links := aqm.RESTfulLinksFor(order)
	w.WriteHeader(http.StatusCreated)
	aqm.RespondSuccess(w, order, links...)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not load order")
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

func (h *Handler) GetActiveOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetActiveOrder")
	defer finish()

	log := h.log(r)

	tableIDStr := r.URL.Query().Get("table_id")
	tableID, err := uuid.Parse(tableIDStr)
	if err != nil {
		log.Debug("invalid table_id parameter", "table_id", tableIDStr)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid table_id parameter")
		return
	}

	order, err := h.service.Active(r.Context(), tableID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.respondServiceError(w, log, err, "Could not load active order")
		return
	}

	aqm.RespondSuccess(w, ActiveOrderResponse{Order: order})
}

func (h *Handler) ListActiveTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListActiveTables")
	defer finish()

	log := h.log(r)

	tables, err := h.service.ActiveTables(r.Context())
	if err != nil {
		log.Error("error retrieving active tables", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not retrieve active tables")
		return
	}

	aqm.RespondCollection(w, tables, "active_table")
}

func (h *Handler) AppendItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AppendItems")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req AppendRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	order, err := h.service.Append(r.Context(), id, req.Items)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not append items")
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

func (h *Handler) ConfirmPrinted(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ConfirmPrinted")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req ConfirmPrintedRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	order, err := h.service.ConfirmPrinted(r.Context(), id, req.ItemIDs, req.AttemptID)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not confirm print")
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

func (h *Handler) RenameOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RenameOrder")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req RenameRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	order, err := h.service.Rename(r.Context(), id, req.Nickname)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not rename order")
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseOrder")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, err := h.service.Close(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not close order")
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

func (h *Handler) MarkItemDelivered(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MarkItemDelivered")
	defer finish()

	log := h.log(r)

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, err := h.service.MarkDelivered(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not mark item delivered")
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

// Helper methods
func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log aqm.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		log.Debug("missing id parameter")
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

func (h *Handler) respondServiceError(w http.ResponseWriter, log aqm.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalid):
		log.Debug("invalid order request", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		aqm.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAttemptMismatch), errors.Is(err, ErrClosed), errors.Is(err, ErrVersionConflict):
		log.Info("order request rejected", "error", err)
		aqm.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Error(fallback, "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}
