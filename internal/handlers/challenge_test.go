package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melizondo/voltcart/internal/handlers"
	"github.com/melizondo/voltcart/internal/models"
)

// MockIssuer implements ChallengeIssuer
type MockIssuer struct {
	challenge models.Challenge
	err       error
}

func (m *MockIssuer) Issue(ctx context.Context) (models.Challenge, error) {
	return m.challenge, m.err
}

func TestChallengeNew_AnswerNeverLeaks(t *testing.T) {
	issuer := &MockIssuer{
		challenge: models.Challenge{ID: "ch-1", Question: "3 + 4", Answer: 7},
	}
	handler := handlers.NewChallengeHandler(issuer)

	req := httptest.NewRequest(http.MethodGet, "/checkout/challenge", nil)
	rec := httptest.NewRecorder()

	handler.New(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ch-1", resp.ChallengeID)
	assert.Equal(t, "3 + 4", resp.Question)

	// The raw body must not carry the answer in any form
	assert.NotContains(t, rec.Body.String(), `"answer"`)
	assert.NotContains(t, rec.Body.String(), ":7")
}

func TestChallengeNew_StoreFailure(t *testing.T) {
	issuer := &MockIssuer{err: fmt.Errorf("redis down")}
	handler := handlers.NewChallengeHandler(issuer)

	req := httptest.NewRequest(http.MethodGet, "/checkout/challenge", nil)
	rec := httptest.NewRecorder()

	handler.New(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}
