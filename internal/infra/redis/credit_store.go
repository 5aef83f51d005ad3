package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CreditStore keeps per-session question credits in a Redis hash:
//
//	HSET session:{sessionID}:credits {questionID} {points}
//
// The hash expires with the authentication session, so abandoned sessions
// shed their provisional credits on their own.
type CreditStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCreditStore(client *redis.Client, ttl time.Duration) *CreditStore {
	return &CreditStore{client: client, ttl: ttl}
}

// Credit records points for a question unless the session already holds a
// credit for it. HSETNX gives first-answer-wins atomically.
func (s *CreditStore) Credit(ctx context.Context, sessionID string, questionID int64, points int) error {
	key := s.key(sessionID)
	if err := s.client.HSetNX(ctx, key, field(questionID), points).Err(); err != nil {
		return fmt.Errorf("credit question %d: %w", questionID, err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("refresh credit ttl: %w", err)
		}
	}
	return nil
}

func (s *CreditStore) Credits(ctx context.Context, sessionID string) (map[int64]int, error) {
	raw, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load credits: %w", err)
	}
	credits := make(map[int64]int, len(raw))
	for f, v := range raw {
		questionID, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt credit field %q: %w", f, err)
		}
		points, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt credit value %q for question %d: %w", v, questionID, err)
		}
		credits[questionID] = points
	}
	return credits, nil
}

func (s *CreditStore) Clear(ctx context.Context, sessionID string, questionIDs []int64) error {
	if len(questionIDs) == 0 {
		return nil
	}
	fields := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		fields[i] = field(id)
	}
	if err := s.client.HDel(ctx, s.key(sessionID), fields...).Err(); err != nil {
		return fmt.Errorf("clear credits: %w", err)
	}
	return nil
}

func (s *CreditStore) key(sessionID string) string {
	return "session:" + sessionID + ":credits"
}

func field(questionID int64) string {
	return strconv.FormatInt(questionID, 10)
}
