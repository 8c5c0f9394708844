package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/melizondo/voltcart/internal/models"
	pkglogger "github.com/melizondo/voltcart/pkg/logger"
)

// TotalTolerance is the maximum absolute difference between the recomputed
// and client-claimed totals before an order is rejected.
const TotalTolerance = 0.01

// OrderStore defines the persistence interface for orders
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
}

// OrderNotifier sends order confirmations. Delivery is best effort.
type OrderNotifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// OrderService validates order totals against their line items and persists
// accepted orders. The client-claimed total is only ever compared; the
// recomputed value is what gets stored.
type OrderService struct {
	store    OrderStore
	events   EventSink
	notifier OrderNotifier
	logger   *slog.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(store OrderStore, events EventSink, notifier OrderNotifier, logger *slog.Logger) *OrderService {
	return &OrderService{
		store:    store,
		events:   events,
		notifier: notifier,
		logger:   logger,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ValidateTotal recomputes the monetary total from the line items and
// compares it against the claimed total. An order with no items is invalid.
// A line item with a non-positive price or quantity contributes zero to the
// sum rather than failing the whole computation; the malformed row simply
// doesn't count.
func (s *OrderService) ValidateTotal(items []models.LineItem, claimedTotal float64) models.TotalValidation {
	if len(items) == 0 {
		return models.TotalValidation{
			IsValid:         false,
			CalculatedTotal: 0,
			Reason:          "order must contain at least one item",
		}
	}

	var sum float64
	for _, item := range items {
		if item.Price <= 0 || item.Quantity <= 0 || math.IsNaN(item.Price) || math.IsInf(item.Price, 0) {
			continue
		}
		sum += item.Price * float64(item.Quantity)
	}

	calculated := round2(sum)
	difference := round2(math.Abs(calculated - claimedTotal))

	result := models.TotalValidation{
		IsValid:         difference <= TotalTolerance,
		CalculatedTotal: calculated,
		Difference:      difference,
	}
	if !result.IsValid {
		result.Reason = "order total does not match line items"
	}

	return result
}

// OrderRequest is a fully-validated order submission ready for persistence
type OrderRequest struct {
	CustomerName  string
	CustomerEmail string
	Items         []models.LineItem
	ClaimedTotal  float64
	URL           string
	UserAgent     string
}

// CreateOrder runs total validation and persists the order with the
// recomputed total. A mismatch aborts the transaction, logs a
// price-manipulation signal, and returns models.ErrTotalMismatch; nothing is
// silently corrected in the client's favor.
func (s *OrderService) CreateOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	validation := s.ValidateTotal(req.Items, req.ClaimedTotal)
	if !validation.IsValid {
		if len(req.Items) == 0 {
			return nil, models.ErrEmptyOrder
		}

		s.events.LogEvent(ctx, models.EventSuspiciousInput, req.URL, req.UserAgent, models.EventDetails{
			"signal":           "price_manipulation_attempt",
			"identity":         pkglogger.SanitizedEmail(req.CustomerEmail),
			"claimed_total":    req.ClaimedTotal,
			"calculated_total": validation.CalculatedTotal,
			"difference":       validation.Difference,
		})
		s.logger.Warn("order total mismatch rejected",
			slog.Float64("claimed", req.ClaimedTotal),
			slog.Float64("calculated", validation.CalculatedTotal))

		return nil, models.ErrTotalMismatch
	}

	order := &models.Order{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Status:        models.OrderStatusPending,
		Total:         validation.CalculatedTotal,
		Items:         req.Items,
	}

	created, err := s.store.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.SendOrderConfirmation(ctx, created); err != nil {
			// Confirmation email is best effort
			s.logger.Error("failed to send order confirmation", slog.Any("error", err))
		}
	}

	return created, nil
}
