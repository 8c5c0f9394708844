package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/services"
)

// MockAttemptStore implements AttemptStore for testing
type MockAttemptStore struct {
	records map[string]*models.AttemptRecord
	getErr  error
}

func NewMockAttemptStore() *MockAttemptStore {
	return &MockAttemptStore{
		records: make(map[string]*models.AttemptRecord),
	}
}

func (m *MockAttemptStore) Get(ctx context.Context, identity string) (*models.AttemptRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[identity]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MockAttemptStore) IncrementFailure(ctx context.Context, identity string, at time.Time) (*models.AttemptRecord, error) {
	rec, ok := m.records[identity]
	if !ok {
		rec = &models.AttemptRecord{Identity: identity}
		m.records[identity] = rec
	}
	rec.Count++
	rec.LastAttempt = at
	copied := *rec
	return &copied, nil
}

func (m *MockAttemptStore) SetLockout(ctx context.Context, identity string, until time.Time) error {
	rec, ok := m.records[identity]
	if !ok {
		return models.ErrNotFound
	}
	rec.LockoutUntil = &until
	return nil
}

func (m *MockAttemptStore) Delete(ctx context.Context, identity string) error {
	delete(m.records, identity)
	return nil
}

// MockEventSink records logged events for assertions
type MockEventSink struct {
	events []string
}

func (m *MockEventSink) LogEvent(ctx context.Context, eventType, url, userAgent string, details models.EventDetails) {
	m.events = append(m.events, eventType)
}

// MockLockoutNotifier records lockout notices
type MockLockoutNotifier struct {
	notices []string
	err     error
}

func (m *MockLockoutNotifier) SendLockoutNotice(ctx context.Context, email string, minutes int) error {
	m.notices = append(m.notices, email)
	return m.err
}

func newRateLimitService(store *MockAttemptStore, sink *MockEventSink) *services.RateLimitService {
	return newRateLimitServiceWithNotifier(store, sink, nil)
}

func newRateLimitServiceWithNotifier(store *MockAttemptStore, sink *MockEventSink, notifier services.LockoutNotifier) *services.RateLimitService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	config := services.RateLimitConfig{
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
	}
	return services.NewRateLimitService(store, sink, notifier, config, logger)
}

func TestCheckRateLimit_AllowsUnknownIdentity(t *testing.T) {
	service := newRateLimitService(NewMockAttemptStore(), &MockEventSink{})

	status := service.CheckRateLimit(context.Background(), "new@example.com", "/auth/login", "test-agent")

	assert.False(t, status.Locked)
	assert.Zero(t, status.MinutesLeft)
}

func TestCheckRateLimit_AllowsBelowThreshold(t *testing.T) {
	store := NewMockAttemptStore()
	service := newRateLimitService(store, &MockEventSink{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	}

	status := service.CheckRateLimit(ctx, "shopper@example.com", "/auth/login", "test-agent")
	assert.False(t, status.Locked)
}

func TestCheckRateLimit_BlocksAtThreshold(t *testing.T) {
	store := NewMockAttemptStore()
	sink := &MockEventSink{}
	service := newRateLimitService(store, sink)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	}

	status := service.CheckRateLimit(ctx, "shopper@example.com", "/auth/login", "test-agent")

	assert.True(t, status.Locked)
	assert.Equal(t, 15, status.MinutesLeft)
	assert.Contains(t, sink.events, models.EventRateLimitTriggered)
}

func TestCheckRateLimit_ExpiredLockoutClearsRecord(t *testing.T) {
	store := NewMockAttemptStore()
	service := newRateLimitService(store, &MockEventSink{})
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	store.records["shopper@example.com"] = &models.AttemptRecord{
		Identity:     "shopper@example.com",
		Count:        5,
		LastAttempt:  past.Add(-15 * time.Minute),
		LockoutUntil: &past,
	}

	status := service.CheckRateLimit(ctx, "shopper@example.com", "/auth/login", "test-agent")
	assert.False(t, status.Locked)

	// Record was deleted, so the identity is back to a full allotment
	_, ok := store.records["shopper@example.com"]
	assert.False(t, ok)
	assert.Equal(t, 5, service.RemainingAttempts(ctx, "shopper@example.com"))
}

func TestCheckRateLimit_FailsOpenOnStoreError(t *testing.T) {
	store := NewMockAttemptStore()
	store.getErr = errors.New("connection refused")
	service := newRateLimitService(store, &MockEventSink{})

	status := service.CheckRateLimit(context.Background(), "shopper@example.com", "/auth/login", "test-agent")

	assert.False(t, status.Locked)
}

func TestRecordFailedAttempt_ExtendsLockoutWhileLocked(t *testing.T) {
	store := NewMockAttemptStore()
	service := newRateLimitService(store, &MockEventSink{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	}
	firstLockout := *store.records["shopper@example.com"].LockoutUntil

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	secondLockout := *store.records["shopper@example.com"].LockoutUntil

	assert.True(t, secondLockout.After(firstLockout))
	assert.Equal(t, 6, store.records["shopper@example.com"].Count)
}

func TestRecordFailedAttempt_SendsLockoutNoticeOnce(t *testing.T) {
	store := NewMockAttemptStore()
	notifier := &MockLockoutNotifier{}
	service := newRateLimitServiceWithNotifier(store, &MockEventSink{}, notifier)
	ctx := context.Background()

	// Failures past the threshold extend the lockout but notify only once
	for i := 0; i < 7; i++ {
		require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	}

	require.Len(t, notifier.notices, 1)
	assert.Equal(t, "shopper@example.com", notifier.notices[0])
}

func TestRecordFailedAttempt_NotifierFailureDoesNotFailAttempt(t *testing.T) {
	store := NewMockAttemptStore()
	notifier := &MockLockoutNotifier{err: errors.New("ses unavailable")}
	service := newRateLimitServiceWithNotifier(store, &MockEventSink{}, notifier)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	}

	assert.NotNil(t, store.records["shopper@example.com"].LockoutUntil)
}

func TestInspectAttempts_UnknownIdentity(t *testing.T) {
	service := newRateLimitService(NewMockAttemptStore(), &MockEventSink{})

	status, err := service.InspectAttempts(context.Background(), "new@example.com")

	require.NoError(t, err)
	assert.Zero(t, status.FailedAttempts)
	assert.Equal(t, 5, status.RemainingAttempts)
	assert.False(t, status.Locked)
	assert.Nil(t, status.LastAttempt)
}

func TestInspectAttempts_LockedIdentity(t *testing.T) {
	store := NewMockAttemptStore()
	sink := &MockEventSink{}
	service := newRateLimitService(store, sink)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	}

	status, err := service.InspectAttempts(ctx, "shopper@example.com")

	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 15, status.MinutesLeft)
	assert.Equal(t, 5, status.FailedAttempts)
	assert.Zero(t, status.RemainingAttempts)
	// Inspection never emits rate-limit events
	assert.Empty(t, sink.events)
}

func TestInspectAttempts_DoesNotClearExpiredLockout(t *testing.T) {
	store := NewMockAttemptStore()
	service := newRateLimitService(store, &MockEventSink{})

	past := time.Now().Add(-time.Minute)
	store.records["shopper@example.com"] = &models.AttemptRecord{
		Identity:     "shopper@example.com",
		Count:        5,
		LastAttempt:  past.Add(-15 * time.Minute),
		LockoutUntil: &past,
	}

	status, err := service.InspectAttempts(context.Background(), "shopper@example.com")

	require.NoError(t, err)
	assert.False(t, status.Locked)
	// Unlike CheckRateLimit, inspection leaves the record in place
	_, ok := store.records["shopper@example.com"]
	assert.True(t, ok)
}

func TestResetFailedAttempts_DeletesRecord(t *testing.T) {
	store := NewMockAttemptStore()
	service := newRateLimitService(store, &MockEventSink{})
	ctx := context.Background()

	require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	require.NoError(t, service.ResetFailedAttempts(ctx, "shopper@example.com"))

	assert.Equal(t, 5, service.RemainingAttempts(ctx, "shopper@example.com"))
}

func TestRemainingAttempts_NeverNegative(t *testing.T) {
	store := NewMockAttemptStore()
	service := newRateLimitService(store, &MockEventSink{})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, service.RecordFailedAttempt(ctx, "shopper@example.com"))
	}

	assert.Equal(t, 0, service.RemainingAttempts(ctx, "shopper@example.com"))
}
