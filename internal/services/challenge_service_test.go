package services_test

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/services"
)

// MockChallengeStore implements ChallengeStorer with single-use semantics
type MockChallengeStore struct {
	answers map[string]int
	saveErr error
}

func NewMockChallengeStore() *MockChallengeStore {
	return &MockChallengeStore{answers: make(map[string]int)}
}

func (m *MockChallengeStore) Save(ctx context.Context, challengeID string, answer int) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.answers[challengeID] = answer
	return nil
}

func (m *MockChallengeStore) Consume(ctx context.Context, challengeID string) (int, error) {
	answer, ok := m.answers[challengeID]
	if !ok {
		return 0, models.ErrChallengeExpired
	}
	delete(m.answers, challengeID)
	return answer, nil
}

func newChallengeService(store *MockChallengeStore) *services.ChallengeService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return services.NewChallengeService(store, logger)
}

func TestGenerate_ProducesSolvablePuzzles(t *testing.T) {
	service := newChallengeService(NewMockChallengeStore())

	for i := 0; i < 200; i++ {
		ch := service.Generate()

		require.NotEmpty(t, ch.ID)

		parts := strings.Fields(ch.Question)
		require.Len(t, parts, 3, "question %q", ch.Question)

		a, err := strconv.Atoi(parts[0])
		require.NoError(t, err)
		b, err := strconv.Atoi(parts[2])
		require.NoError(t, err)

		switch parts[1] {
		case "+":
			assert.Equal(t, a+b, ch.Answer)
		case "-":
			assert.Equal(t, a-b, ch.Answer)
			assert.GreaterOrEqual(t, ch.Answer, 0, "subtraction must not go negative")
		case "×":
			assert.Equal(t, a*b, ch.Answer)
			assert.LessOrEqual(t, a, 5)
			assert.LessOrEqual(t, b, 5)
		default:
			t.Fatalf("unexpected operator %q", parts[1])
		}
	}
}

func TestGenerate_UniqueIDs(t *testing.T) {
	service := newChallengeService(NewMockChallengeStore())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ch := service.Generate()
		assert.False(t, seen[ch.ID])
		seen[ch.ID] = true
	}
}

func TestValidate(t *testing.T) {
	service := newChallengeService(NewMockChallengeStore())

	tests := []struct {
		name      string
		submitted string
		answer    int
		want      bool
	}{
		{"exact match", "12", 12, true},
		{"surrounding whitespace", "  12  ", 12, true},
		{"wrong value", "13", 12, false},
		{"empty", "", 12, false},
		{"non-numeric", "twelve", 12, false},
		{"float", "12.0", 12, false},
		{"negative match", "-3", -3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.Validate(tt.submitted, tt.answer))
		})
	}
}

func TestIssueAndRedeem_HappyPath(t *testing.T) {
	store := NewMockChallengeStore()
	service := newChallengeService(store)
	ctx := context.Background()

	ch, err := service.Issue(ctx)
	require.NoError(t, err)

	err = service.Redeem(ctx, ch.ID, strconv.Itoa(ch.Answer))
	assert.NoError(t, err)
}

func TestRedeem_WrongAnswerConsumesChallenge(t *testing.T) {
	store := NewMockChallengeStore()
	service := newChallengeService(store)
	ctx := context.Background()

	ch, err := service.Issue(ctx)
	require.NoError(t, err)

	err = service.Redeem(ctx, ch.ID, "99999")
	assert.ErrorIs(t, err, models.ErrChallengeFailed)

	// The puzzle is single-use: a retry with the right answer is too late
	err = service.Redeem(ctx, ch.ID, strconv.Itoa(ch.Answer))
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}

func TestRedeem_UnknownChallenge(t *testing.T) {
	service := newChallengeService(NewMockChallengeStore())

	err := service.Redeem(context.Background(), "no-such-id", "4")
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}
