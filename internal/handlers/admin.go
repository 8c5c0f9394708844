package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/melizondo/voltcart/internal/auth"
	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/services"
	pkghttp "github.com/melizondo/voltcart/pkg/http"
)

// EventLogReader exposes the security event log to the admin dashboard
type EventLogReader interface {
	ListEvents(ctx context.Context) ([]*models.SecurityEvent, error)
	ExportEvents(ctx context.Context) (string, error)
	LogEvent(ctx context.Context, eventType, url, userAgent string, details models.EventDetails)
}

// OrderLister lists recent orders for the dashboard
type OrderLister interface {
	ListRecent(ctx context.Context, limit int) ([]*models.Order, error)
}

// AttemptInspector exposes read-only attempt state to the dashboard
type AttemptInspector interface {
	InspectAttempts(ctx context.Context, identity string) (*services.AttemptStatus, error)
}

// AdminHandler serves the administrative dashboard endpoints
type AdminHandler struct {
	orders    OrderServiceInterface
	orderList OrderLister
	events    EventLogReader
	authSvc   AuthServiceInterface
	attempts  AttemptInspector
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(orders OrderServiceInterface, orderList OrderLister, events EventLogReader, authSvc AuthServiceInterface, attempts AttemptInspector) *AdminHandler {
	return &AdminHandler{
		orders:    orders,
		orderList: orderList,
		events:    events,
		authSvc:   authSvc,
		attempts:  attempts,
	}
}

// AdminOrderRequest is an order created from the dashboard. No verification
// challenge here: the route already requires an admin session. Total
// validation still applies; admins are not exempt from price integrity.
type AdminOrderRequest struct {
	CustomerName  string            `json:"customer_name" validate:"required,max=120"`
	CustomerEmail string            `json:"customer_email" validate:"required,email"`
	Items         []LineItemRequest `json:"items"`
	Total         float64           `json:"total"`
}

// CreateOrder creates an order on behalf of a customer
func (h *AdminHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req AdminOrderRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), services.OrderRequest{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		Items:         toLineItems(req.Items),
		ClaimedTotal:  req.Total,
		URL:           r.URL.Path,
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyOrder):
			pkghttp.WriteBadRequest(w, "Order must contain at least one item")
		case errors.Is(err, models.ErrTotalMismatch):
			pkghttp.WriteUnprocessable(w, "Order total does not match line items")
		default:
			pkghttp.WriteInternalError(w, "Could not create order")
		}
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		h.events.LogEvent(r.Context(), models.EventAdminAction, r.URL.Path, r.UserAgent(), models.EventDetails{
			"action":   "create_order",
			"admin_id": claims.UserID,
			"order_id": order.ID.String(),
		})
	}

	pkghttp.WriteJSON(w, http.StatusCreated, OrderResponse{
		OrderID: order.ID.String(),
		Status:  order.Status,
		Total:   order.Total,
	})
}

// ListOrders returns the newest orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	orders, err := h.orderList.ListRecent(r.Context(), limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Could not list orders")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, orders)
}

// EventResponse is one security event as shown on the dashboard
type EventResponse struct {
	Type      string              `json:"type"`
	Timestamp string              `json:"timestamp"`
	URL       string              `json:"url"`
	UserAgent string              `json:"user_agent"`
	Details   models.EventDetails `json:"details"`
}

// ListSecurityEvents returns the current event log, oldest first
func (h *AdminHandler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Could not list security events")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			Type:      ev.Type,
			Timestamp: ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			URL:       ev.URL,
			UserAgent: ev.UserAgent,
			Details:   ev.Details,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, out)
}

// ExportSecurityEvents downloads the event log as delimited text
func (h *AdminHandler) ExportSecurityEvents(w http.ResponseWriter, r *http.Request) {
	export, err := h.events.ExportEvents(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrNoEvents) {
			pkghttp.WriteNotFound(w, "No security events recorded")
			return
		}
		pkghttp.WriteInternalError(w, "Could not export security events")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="security-events.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export))
}

// GetAttemptStatus shows the failed-attempt state for one identity. Reads
// only: viewing a locked account from the dashboard must not emit events or
// reset anything.
func (h *AdminHandler) GetAttemptStatus(w http.ResponseWriter, r *http.Request) {
	identity := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("identity")))
	if identity == "" {
		pkghttp.WriteBadRequest(w, "identity query parameter is required")
		return
	}

	status, err := h.attempts.InspectAttempts(r.Context(), identity)
	if err != nil {
		pkghttp.WriteInternalError(w, "Could not read attempt state")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// MFAActivateRequest confirms TOTP enrollment with a first valid code
type MFAActivateRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// SetupMFA begins TOTP enrollment for the logged-in admin
func (h *AdminHandler) SetupMFA(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	resp, err := h.authSvc.SetupMFA(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Could not set up MFA")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ActivateMFA enables MFA after verifying the submitted code
func (h *AdminHandler) ActivateMFA(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req MFAActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.authSvc.ActivateMFA(r.Context(), claims.UserID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrMFAInvalid):
			pkghttp.WriteBadRequest(w, "Invalid TOTP code")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "MFA setup has not been started")
		default:
			pkghttp.WriteInternalError(w, "Could not activate MFA")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"mfa_enabled": true})
}
