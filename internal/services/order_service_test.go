package services_test

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/services"
)

// MockOrderStore captures persisted orders
type MockOrderStore struct {
	created []*models.Order
}

func (m *MockOrderStore) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	m.created = append(m.created, order)
	return order, nil
}

// MockNotifier records confirmation emails
type MockNotifier struct {
	mu   sync.Mutex
	sent []*models.Order
	err  error
}

func (m *MockNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, order)
	return m.err
}

// detailedEventSink keeps full event payloads for assertions
type detailedEventSink struct {
	types   []string
	details []models.EventDetails
}

func (m *detailedEventSink) LogEvent(ctx context.Context, eventType, url, userAgent string, details models.EventDetails) {
	m.types = append(m.types, eventType)
	m.details = append(m.details, details)
}

func newOrderService(store *MockOrderStore, sink *detailedEventSink, notifier *MockNotifier) *services.OrderService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var n services.OrderNotifier
	if notifier != nil {
		n = notifier
	}
	return services.NewOrderService(store, sink, n, logger)
}

func TestValidateTotal(t *testing.T) {
	service := newOrderService(&MockOrderStore{}, &detailedEventSink{}, nil)

	tests := []struct {
		name      string
		items     []models.LineItem
		claimed   float64
		wantValid bool
		wantCalc  float64
	}{
		{
			name:      "empty order is invalid",
			items:     nil,
			claimed:   0,
			wantValid: false,
			wantCalc:  0,
		},
		{
			name: "matching total",
			items: []models.LineItem{
				{ProductName: "USB-C Hub", Price: 39.99, Quantity: 2},
			},
			claimed:   79.98,
			wantValid: true,
			wantCalc:  79.98,
		},
		{
			name: "within tolerance",
			items: []models.LineItem{
				{ProductName: "HDMI Cable", Price: 9.99, Quantity: 1},
			},
			claimed:   9.98,
			wantValid: true,
			wantCalc:  9.99,
		},
		{
			name: "just past tolerance",
			items: []models.LineItem{
				{ProductName: "HDMI Cable", Price: 9.99, Quantity: 1},
			},
			claimed:   9.97,
			wantValid: false,
			wantCalc:  9.99,
		},
		{
			name: "tampered total",
			items: []models.LineItem{
				{ProductName: "Gaming Laptop", Price: 1499.99, Quantity: 1},
			},
			claimed:   14.99,
			wantValid: false,
			wantCalc:  1499.99,
		},
		{
			name: "negative price contributes nothing",
			items: []models.LineItem{
				{ProductName: "Webcam", Price: 89.99, Quantity: 1},
				{ProductName: "Refund Hack", Price: -50, Quantity: 1},
			},
			claimed:   89.99,
			wantValid: true,
			wantCalc:  89.99,
		},
		{
			name: "zero quantity contributes nothing",
			items: []models.LineItem{
				{ProductName: "Webcam", Price: 89.99, Quantity: 1},
				{ProductName: "Freebie", Price: 10, Quantity: 0},
			},
			claimed:   89.99,
			wantValid: true,
			wantCalc:  89.99,
		},
		{
			name: "only malformed items sums to zero",
			items: []models.LineItem{
				{ProductName: "Ghost", Price: -1, Quantity: 3},
			},
			claimed:   0,
			wantValid: true,
			wantCalc:  0,
		},
		{
			name: "floating point rounding",
			items: []models.LineItem{
				{ProductName: "Battery", Price: 0.1, Quantity: 3},
			},
			claimed:   0.30,
			wantValid: true,
			wantCalc:  0.30,
		},
		{
			name: "nan price contributes nothing",
			items: []models.LineItem{
				{ProductName: "Webcam", Price: 89.99, Quantity: 1},
				{ProductName: "Glitch", Price: math.NaN(), Quantity: 1},
			},
			claimed:   89.99,
			wantValid: true,
			wantCalc:  89.99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.ValidateTotal(tt.items, tt.claimed)
			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.InDelta(t, tt.wantCalc, result.CalculatedTotal, 0.001)
			if !tt.wantValid {
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestCreateOrder_PersistsRecomputedTotal(t *testing.T) {
	store := &MockOrderStore{}
	sink := &detailedEventSink{}
	notifier := &MockNotifier{}
	service := newOrderService(store, sink, notifier)

	order, err := service.CreateOrder(context.Background(), services.OrderRequest{
		CustomerName:  "Lucia Fernandez",
		CustomerEmail: "lucia@example.com",
		Items: []models.LineItem{
			{ProductName: "4K Monitor", Price: 599.99, Quantity: 2},
		},
		ClaimedTotal: 1199.98,
	})

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.InDelta(t, 1199.98, order.Total, 0.001)
	require.Len(t, store.created, 1)
	assert.Len(t, notifier.sent, 1)
	assert.Empty(t, sink.types)
}

func TestCreateOrder_EmptyOrder(t *testing.T) {
	store := &MockOrderStore{}
	sink := &detailedEventSink{}
	service := newOrderService(store, sink, nil)

	_, err := service.CreateOrder(context.Background(), services.OrderRequest{
		CustomerName: "Lucia Fernandez",
		ClaimedTotal: 0,
	})

	assert.ErrorIs(t, err, models.ErrEmptyOrder)
	assert.Empty(t, store.created)
	assert.Empty(t, sink.types, "an empty cart is a mistake, not an attack")
}

func TestCreateOrder_MismatchLogsManipulationSignal(t *testing.T) {
	store := &MockOrderStore{}
	sink := &detailedEventSink{}
	service := newOrderService(store, sink, nil)

	_, err := service.CreateOrder(context.Background(), services.OrderRequest{
		CustomerName:  "Mallory",
		CustomerEmail: "mallory@example.com",
		Items: []models.LineItem{
			{ProductName: "Gaming Laptop", Price: 1499.99, Quantity: 1},
		},
		ClaimedTotal: 1.99,
		URL:          "/checkout/orders",
		UserAgent:    "curl/8.0",
	})

	assert.ErrorIs(t, err, models.ErrTotalMismatch)
	assert.Empty(t, store.created, "a mismatched order must never be persisted")

	require.Len(t, sink.types, 1)
	assert.Equal(t, models.EventSuspiciousInput, sink.types[0])
	assert.Equal(t, "price_manipulation_attempt", sink.details[0]["signal"])
	assert.Equal(t, 1.99, sink.details[0]["claimed_total"])
	assert.Equal(t, 1499.99, sink.details[0]["calculated_total"])
}

func TestCreateOrder_NotifierFailureDoesNotFailOrder(t *testing.T) {
	store := &MockOrderStore{}
	notifier := &MockNotifier{err: assert.AnError}
	service := newOrderService(store, &detailedEventSink{}, notifier)

	order, err := service.CreateOrder(context.Background(), services.OrderRequest{
		CustomerName:  "Lucia Fernandez",
		CustomerEmail: "lucia@example.com",
		Items: []models.LineItem{
			{ProductName: "HDMI Cable", Price: 9.99, Quantity: 1},
		},
		ClaimedTotal: 9.99,
	})

	require.NoError(t, err)
	assert.NotNil(t, order)
}
