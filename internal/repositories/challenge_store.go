package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/melizondo/voltcart/internal/models"
	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "challenge:"

// ChallengeStore holds issued human-verification challenges in Redis. Each
// challenge lives under its own key with a TTL and is consumed atomically
// with GETDEL, so an answer can never be replayed across submissions.
type ChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChallengeStore creates a new ChallengeStore
func NewChallengeStore(client *redis.Client, ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{client: client, ttl: ttl}
}

// Save stores the expected answer for a challenge ID
func (s *ChallengeStore) Save(ctx context.Context, challengeID string, answer int) error {
	key := challengeKeyPrefix + challengeID
	if err := s.client.Set(ctx, key, answer, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Consume removes the challenge and returns its expected answer. A missing
// or expired challenge yields models.ErrChallengeExpired.
func (s *ChallengeStore) Consume(ctx context.Context, challengeID string) (int, error) {
	key := challengeKeyPrefix + challengeID

	val, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, models.ErrChallengeExpired
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume challenge: %w", err)
	}

	answer, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt challenge value: %w", err)
	}

	return answer, nil
}
