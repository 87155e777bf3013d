package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/internal/commerce"
	"github.com/orderdesk/backoffice/internal/filter"
	"github.com/orderdesk/backoffice/internal/gateway"
	"github.com/orderdesk/backoffice/internal/store"
	"github.com/orderdesk/backoffice/internal/websocket"
	"github.com/orderdesk/backoffice/pkg/models"
)

// Handler exposes the back-office order API. Reads are served straight from
// the store; mutations go through the gateway.
type Handler struct {
	store    *store.Store
	gateway  *gateway.Gateway
	hub      *websocket.Hub
	validate *validatorv10.Validate
	logger   *logrus.Logger
}

func NewHandler(st *store.Store, gw *gateway.Gateway, hub *websocket.Hub, validate *validatorv10.Validate, logger *logrus.Logger) *Handler {
	return &Handler{
		store:    st,
		gateway:  gw,
		hub:      hub,
		validate: validate,
		logger:   logger,
	}
}

func (h *Handler) Routes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/api/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/api/orders/stats", h.OrderStats).Methods("GET")
	router.HandleFunc("/api/orders/refresh", h.RefreshOrders).Methods("POST")
	router.HandleFunc("/api/orders/promote", h.PromoteOrders).Methods("POST")
	router.HandleFunc("/api/orders/reconcile", h.ReconcileOrders).Methods("GET")
	router.HandleFunc("/api/orders/{id}", h.GetOrder).Methods("GET")
	router.HandleFunc("/api/orders/{id}", h.UpdateOrder).Methods("PUT")
	router.HandleFunc("/api/orders/{id}", h.DeleteOrder).Methods("DELETE")
	if h.hub != nil {
		router.HandleFunc("/ws", h.hub.HandleWebSocket)
	}
}

// ListOrders returns the filtered, sorted view plus the load-state metadata
// the dashboard needs to render banners (demo mode, auth required, errors).
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders := filter.Apply(h.store.Snapshot(), criteria)

	response := map[string]interface{}{
		"orders":   orders,
		"count":    len(orders),
		"total":    h.store.Len(),
		"state":    h.store.State().String(),
		"demoMode": h.store.DemoMode(),
	}
	if lastErr := h.store.LastError(); lastErr != nil {
		response["error"] = lastErr.Error()
	}

	h.respondWithJSON(w, http.StatusOK, response)
}

// OrderStats summarizes the unfiltered list. Query filters are deliberately
// ignored so the dashboard cards always describe the whole data set.
func (h *Handler) OrderStats(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, filter.Summarize(h.store.Snapshot()))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	order, ok := h.store.Get(orderID)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Order not found")
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var draft models.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.logger.WithError(err).Error("Failed to decode order draft")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(draft); err != nil {
		h.respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	order := h.gateway.Create(r.Context(), draft)
	h.broadcast("order.created", order)
	h.respondWithJSON(w, http.StatusCreated, order)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.WithError(err).Error("Failed to decode order patch")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	delete(patch, "id")

	order, err := h.gateway.Update(r.Context(), orderID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("Failed to update order")
		h.respondWithError(w, statusFor(err), "Failed to update order")
		return
	}

	h.broadcast("order.updated", order)
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	if err := h.gateway.Delete(r.Context(), orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("Failed to delete order")
		h.respondWithError(w, statusFor(err), "Failed to delete order")
		return
	}

	h.broadcast("order.deleted", map[string]string{"id": orderID})
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      orderID,
	})
}

// RefreshOrders re-fetches the canonical list. Auth failures map to 401 so
// the dashboard can prompt for credentials; a demo-data degrade is a success.
func (h *Handler) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Refresh(r.Context()); err != nil {
		if commerce.IsAuthError(err) {
			h.respondWithError(w, http.StatusUnauthorized, "Commerce API authentication required")
			return
		}
		h.respondWithError(w, http.StatusBadGateway, "Failed to refresh orders")
		return
	}

	h.broadcast("store.replaced", map[string]interface{}{
		"count": h.store.Len(),
		"state": h.store.State().String(),
	})
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    h.store.Len(),
		"state":    h.store.State().String(),
		"demoMode": h.store.DemoMode(),
	})
}

func (h *Handler) PromoteOrders(w http.ResponseWriter, r *http.Request) {
	concurrency := 0
	if raw := r.URL.Query().Get("concurrency"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 32 {
			h.respondWithError(w, http.StatusBadRequest, "concurrency must be between 1 and 32")
			return
		}
		concurrency = n
	}

	result := h.gateway.PromoteDemoOrders(r.Context(), concurrency)
	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) ReconcileOrders(w http.ResponseWriter, r *http.Request) {
	report, err := h.gateway.Reconcile(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Reconciliation failed")
		h.respondWithError(w, http.StatusBadGateway, "Failed to reconcile orders")
		return
	}
	h.respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "backoffice",
		"state":    h.store.State().String(),
		"demoMode": h.store.DemoMode(),
		"orders":   h.store.Len(),
	})
}

func (h *Handler) broadcast(event string, payload interface{}) {
	if h.hub != nil {
		h.hub.Broadcast(event, payload, h.store.DemoMode())
	}
}

// criteriaFromQuery maps the list endpoint's query params onto filter
// criteria. Dates accept YYYY-MM-DD or RFC 3339.
func criteriaFromQuery(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	criteria := filter.Default()

	criteria.SearchTerm = q.Get("search")
	if v := q.Get("status"); v != "" {
		criteria.Status = v
	}
	if v := q.Get("paymentStatus"); v != "" {
		criteria.PaymentStatus = v
	}
	if v := q.Get("sortBy"); v != "" {
		criteria.SortBy = v
	}
	if v := q.Get("sortOrder"); v != "" {
		criteria.SortOrder = v
	}

	if v := q.Get("dateStart"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return criteria, errors.New("invalid dateStart")
		}
		criteria.DateStart = &t
	}
	if v := q.Get("dateEnd"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return criteria, errors.New("invalid dateEnd")
		}
		criteria.DateEnd = &t
	}

	if v := q.Get("amountMin"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return criteria, errors.New("invalid amountMin")
		}
		criteria.AmountMin = &f
	}
	if v := q.Get("amountMax"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return criteria, errors.New("invalid amountMax")
		}
		criteria.AmountMax = &f
	}

	return criteria, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// statusFor maps upstream failures to gateway-ish status codes.
func statusFor(err error) int {
	var apiErr *commerce.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return http.StatusNotFound
		case apiErr.StatusCode == http.StatusUnauthorized:
			return http.StatusUnauthorized
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return http.StatusBadRequest
		}
	}
	return http.StatusBadGateway
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
