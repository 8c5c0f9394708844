package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melizondo/voltcart/internal/handlers"
	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/services"
)

// MockOrderService implements OrderServiceInterface
type MockOrderService struct {
	err      error
	received *services.OrderRequest
}

func (m *MockOrderService) CreateOrder(ctx context.Context, req services.OrderRequest) (*models.Order, error) {
	m.received = &req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Order{
		ID:     uuid.New(),
		Status: models.OrderStatusPending,
		Total:  req.ClaimedTotal,
	}, nil
}

// MockRedeemer implements ChallengeRedeemer
type MockRedeemer struct {
	err      error
	redeemed []string
}

func (m *MockRedeemer) Redeem(ctx context.Context, challengeID, submitted string) error {
	m.redeemed = append(m.redeemed, challengeID)
	return m.err
}

// MockScreener implements InputScreener
type MockScreener struct {
	flagged bool
}

func (m *MockScreener) DetectSuspiciousInput(ctx context.Context, text, url, userAgent string) bool {
	return m.flagged
}

func validCheckoutBody() map[string]any {
	return map[string]any{
		"customer_name":    "Lucia Fernandez",
		"customer_email":   "lucia@example.com",
		"challenge_id":     "ch-123",
		"challenge_answer": "7",
		"items": []map[string]any{
			{"product_name": "4K Monitor", "price": 599.99, "quantity": 1},
		},
		"total": 599.99,
	}
}

func doCheckout(t *testing.T, handler *handlers.OrderHandler, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.Checkout(rec, req)
	return rec
}

func TestCheckout_Success(t *testing.T) {
	orders := &MockOrderService{}
	redeemer := &MockRedeemer{}
	handler := handlers.NewOrderHandler(orders, redeemer, &MockScreener{})

	rec := doCheckout(t, handler, validCheckoutBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"ch-123"}, redeemer.redeemed)

	var resp handlers.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, models.OrderStatusPending, resp.Status)

	require.NotNil(t, orders.received)
	assert.Equal(t, "lucia@example.com", orders.received.CustomerEmail)
}

func TestCheckout_FailedChallengeStopsBeforeOrder(t *testing.T) {
	orders := &MockOrderService{}
	redeemer := &MockRedeemer{err: models.ErrChallengeFailed}
	handler := handlers.NewOrderHandler(orders, redeemer, &MockScreener{})

	rec := doCheckout(t, handler, validCheckoutBody())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, orders.received, "order creation must not run after a failed challenge")
	assert.Contains(t, rec.Body.String(), "verification challenge")
}

func TestCheckout_ExpiredChallengeSameResponse(t *testing.T) {
	orders := &MockOrderService{}
	redeemer := &MockRedeemer{err: models.ErrChallengeExpired}
	handler := handlers.NewOrderHandler(orders, redeemer, &MockScreener{})

	rec := doCheckout(t, handler, validCheckoutBody())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, orders.received)
}

func TestCheckout_SuspiciousNameRejected(t *testing.T) {
	orders := &MockOrderService{}
	handler := handlers.NewOrderHandler(orders, &MockRedeemer{}, &MockScreener{flagged: true})

	body := validCheckoutBody()
	body["customer_name"] = `<script>alert(1)</script>`
	rec := doCheckout(t, handler, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, orders.received)
	assert.Contains(t, rec.Body.String(), "Invalid characters")
}

func TestCheckout_TotalMismatch(t *testing.T) {
	orders := &MockOrderService{err: models.ErrTotalMismatch}
	handler := handlers.NewOrderHandler(orders, &MockRedeemer{}, &MockScreener{})

	rec := doCheckout(t, handler, validCheckoutBody())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	// The response must not reveal the recomputed total
	assert.NotContains(t, rec.Body.String(), "599.99")
}

func TestCheckout_EmptyOrder(t *testing.T) {
	orders := &MockOrderService{err: models.ErrEmptyOrder}
	handler := handlers.NewOrderHandler(orders, &MockRedeemer{}, &MockScreener{})

	body := validCheckoutBody()
	body["items"] = []map[string]any{}
	rec := doCheckout(t, handler, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least one item")
}

func TestCheckout_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing customer name", func(b map[string]any) { delete(b, "customer_name") }},
		{"bad email", func(b map[string]any) { b["customer_email"] = "not-an-email" }},
		{"missing challenge id", func(b map[string]any) { delete(b, "challenge_id") }},
		{"missing challenge answer", func(b map[string]any) { delete(b, "challenge_answer") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &MockOrderService{}
			redeemer := &MockRedeemer{}
			handler := handlers.NewOrderHandler(orders, redeemer, &MockScreener{})

			body := validCheckoutBody()
			tt.mutate(body)
			rec := doCheckout(t, handler, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, redeemer.redeemed, "challenge must not be consumed by a malformed request")
		})
	}
}

func TestCheckout_MalformedBody(t *testing.T) {
	handler := handlers.NewOrderHandler(&MockOrderService{}, &MockRedeemer{}, &MockScreener{})

	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	handler.Checkout(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
