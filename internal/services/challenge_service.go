package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/melizondo/voltcart/internal/models"
)

// ChallengeStorer defines the storage interface for issued challenges
type ChallengeStorer interface {
	Save(ctx context.Context, challengeID string, answer int) error
	Consume(ctx context.Context, challengeID string) (int, error)
}

// ChallengeService produces arithmetic human-verification puzzles and
// validates submitted answers. Generation has no side effects; issuance
// stores the answer server-side for one-time redemption.
type ChallengeService struct {
	store  ChallengeStorer
	logger *slog.Logger
}

// NewChallengeService creates a new ChallengeService
func NewChallengeService(store ChallengeStorer, logger *slog.Logger) *ChallengeService {
	return &ChallengeService{store: store, logger: logger}
}

// Generate produces a fresh challenge. Subtraction operands are reordered so
// the answer is never negative, and multiplication operands stay in 1..5 so
// the puzzle remains trivial for a human while filtering naive scripts.
func (s *ChallengeService) Generate() models.Challenge {
	var a, b, answer int
	var op string

	switch rand.IntN(3) {
	case 0:
		a, b = rand.IntN(10)+1, rand.IntN(10)+1
		op = "+"
		answer = a + b
	case 1:
		a, b = rand.IntN(10)+1, rand.IntN(10)+1
		if b > a {
			a, b = b, a
		}
		op = "-"
		answer = a - b
	default:
		a, b = rand.IntN(5)+1, rand.IntN(5)+1
		op = "×"
		answer = a * b
	}

	return models.Challenge{
		ID:       uuid.New().String(),
		Question: fmt.Sprintf("%d %s %d", a, op, b),
		Answer:   answer,
	}
}

// Validate coerces the submitted value to an integer and compares it for
// exact equality. No tolerance, no partial credit.
func (s *ChallengeService) Validate(submitted string, answer int) bool {
	n, err := strconv.Atoi(strings.TrimSpace(submitted))
	if err != nil {
		return false
	}
	return n == answer
}

// Issue generates a challenge and stores its answer for later redemption
func (s *ChallengeService) Issue(ctx context.Context) (models.Challenge, error) {
	ch := s.Generate()

	if err := s.store.Save(ctx, ch.ID, ch.Answer); err != nil {
		return models.Challenge{}, fmt.Errorf("failed to issue challenge: %w", err)
	}

	return ch, nil
}

// Redeem consumes the stored challenge and checks the submitted answer.
// The challenge is gone after this call either way: a wrong answer forces
// the client to fetch a brand-new puzzle.
func (s *ChallengeService) Redeem(ctx context.Context, challengeID, submitted string) error {
	answer, err := s.store.Consume(ctx, challengeID)
	if err != nil {
		return err
	}

	if !s.Validate(submitted, answer) {
		return models.ErrChallengeFailed
	}

	return nil
}
