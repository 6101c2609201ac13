// Package handlers provides HTTP handlers exposing the derived views to
// the billing desk, pharmacy queue and admin dashboard UIs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/derive/orders"
	"github.com/carelogic/go-hde/internal/views"
)

// BillingHandler serves ledger lookups and settlement acknowledgments.
type BillingHandler struct {
	view   *views.BillingView
	logger *zap.Logger
}

// NewBillingHandler creates a billing handler.
func NewBillingHandler(view *views.BillingView, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{view: view, logger: logger}
}

// Routes returns the billing routes.
func (h *BillingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/records", h.Lookup)
	r.Post("/records/{patientID}/settle", h.Settle)
	return r
}

// Lookup handles GET /billing/records?query=.
func (h *BillingHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	match := h.view.Lookup(query)
	if match == nil {
		jsonError(w, "no matching billing record", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// Settle handles POST /billing/records/{patientID}/settle.
func (h *BillingHandler) Settle(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	ack, ok := h.view.Settle(patientID)
	if !ok {
		jsonError(w, "no matching billing record", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// PharmacyHandler serves the pending order queue and checkout.
// onComplete fires once per successful checkout; may be nil.
type PharmacyHandler struct {
	view       *views.PharmacyQueueView
	logger     *zap.Logger
	onComplete func()
}

// NewPharmacyHandler creates a pharmacy handler.
func NewPharmacyHandler(view *views.PharmacyQueueView, logger *zap.Logger, onComplete func()) *PharmacyHandler {
	return &PharmacyHandler{view: view, logger: logger, onComplete: onComplete}
}

// Routes returns the pharmacy routes.
func (h *PharmacyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/orders", h.Pending)
	r.Get("/metrics", h.Metrics)
	r.Post("/orders/{id}/complete", h.Complete)
	return r
}

// Pending handles GET /pharmacy/orders.
func (h *PharmacyHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending := h.view.Pending(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": pending,
		"count":  len(pending),
	})
}

// Metrics handles GET /pharmacy/metrics.
func (h *PharmacyHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view.Metrics(r.Context()))
}

// CompleteRequest is the checkout request body.
type CompleteRequest struct {
	PaidAmount float64 `json:"paid_amount"`
}

// Complete handles POST /pharmacy/orders/{id}/complete.
func (h *PharmacyHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PaidAmount < 0 {
		jsonError(w, "paid_amount must not be negative", http.StatusBadRequest)
		return
	}

	order, err := h.view.Complete(r.Context(), id, req.PaidAmount)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			jsonError(w, "order not found", http.StatusNotFound)
		case errors.Is(err, orders.ErrOrderNotPending):
			jsonError(w, "order is not pending", http.StatusConflict)
		default:
			h.logger.Error("order completion failed", zap.String("order_id", id), zap.Error(err))
			jsonError(w, "failed to complete order", http.StatusInternalServerError)
		}
		return
	}
	if h.onComplete != nil {
		h.onComplete()
	}
	writeJSON(w, http.StatusOK, order)
}

// AdminHandler serves the operational dashboard.
type AdminHandler struct {
	view   *views.AdminDashboardView
	logger *zap.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(view *views.AdminDashboardView, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{view: view, logger: logger}
}

// Routes returns the admin routes.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/metrics", h.Metrics)
	return r
}

// Metrics handles GET /admin/metrics?date=YYYY-MM-DD. The reference day
// defaults to today.
func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	refDay := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, time.Local)
		if err != nil {
			jsonError(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		refDay = parsed
	}

	writeJSON(w, http.StatusOK, h.view.Metrics(r.Context(), refDay))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
