package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/services"
	pkghttp "github.com/melizondo/voltcart/pkg/http"
)

// OrderServiceInterface defines the order business logic used by handlers
type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, req services.OrderRequest) (*models.Order, error)
}

// ChallengeRedeemer consumes and checks a stored verification challenge
type ChallengeRedeemer interface {
	Redeem(ctx context.Context, challengeID, submitted string) error
}

// InputScreener flags script/markup injection in free-form text
type InputScreener interface {
	DetectSuspiciousInput(ctx context.Context, text, url, userAgent string) bool
}

// OrderHandler handles the public checkout flow
type OrderHandler struct {
	orders     OrderServiceInterface
	challenges ChallengeRedeemer
	screener   InputScreener
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderServiceInterface, challenges ChallengeRedeemer, screener InputScreener) *OrderHandler {
	return &OrderHandler{
		orders:     orders,
		challenges: challenges,
		screener:   screener,
	}
}

// LineItemRequest is one submitted order line. Price and quantity stay
// unvalidated here: the total validator treats malformed rows as
// contributing zero rather than rejecting the request shape.
type LineItemRequest struct {
	ProductName string  `json:"product_name" validate:"required,max=200"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// CheckoutRequest represents the public order form submission
type CheckoutRequest struct {
	CustomerName    string            `json:"customer_name" validate:"required,max=120"`
	CustomerEmail   string            `json:"customer_email" validate:"required,email"`
	ChallengeID     string            `json:"challenge_id" validate:"required"`
	ChallengeAnswer string            `json:"challenge_answer" validate:"required"`
	Items           []LineItemRequest `json:"items"`
	Total           float64           `json:"total"`
}

// OrderResponse confirms an accepted order. Total is the recomputed value.
type OrderResponse struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Total   float64 `json:"total"`
}

// Checkout handles the public order form: challenge first, then input
// screening, then total validation, then persistence.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// The challenge is consumed whether or not the answer is right; a retry
	// always needs a fresh one. The error message deliberately doesn't say
	// which part failed.
	if err := h.challenges.Redeem(r.Context(), req.ChallengeID, req.ChallengeAnswer); err != nil {
		pkghttp.WriteBadRequest(w, "Please solve the verification challenge correctly")
		return
	}

	if h.screener.DetectSuspiciousInput(r.Context(), req.CustomerName, r.URL.Path, r.UserAgent()) {
		pkghttp.WriteBadRequest(w, "Invalid characters in input")
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
			// Generic message: don't leak the computed vs. claimed values
			pkghttp.WriteUnprocessable(w, "Please reload the page and try again")
		default:
			pkghttp.WriteInternalError(w, "Could not create order")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, OrderResponse{
		OrderID: order.ID.String(),
		Status:  order.Status,
		Total:   order.Total,
	})
}

func toLineItems(items []LineItemRequest) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.LineItem{
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
		})
	}
	return out
}
