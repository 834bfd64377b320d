package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore verifies connectivity and returns a Redis-backed store.
func NewRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) PutCode(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, codeKeyPrefix+email, code, ttl).Err()
}

func (s *RedisStore) GetCode(ctx context.Context, email string) (string, error) {
	return s.getString(ctx, codeKeyPrefix+email)
}

func (s *RedisStore) DeleteCode(ctx context.Context, email string) error {
	return s.client.Del(ctx, codeKeyPrefix+email).Err()
}

func (s *RedisStore) PutPending(ctx context.Context, email string, pending PendingSignup, ttl time.Duration) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending signup: %w", err)
	}
	return s.client.Set(ctx, pendingKeyPrefix+email, raw, ttl).Err()
}

func (s *RedisStore) GetPending(ctx context.Context, email string) (PendingSignup, error) {
	raw, err := s.getString(ctx, pendingKeyPrefix+email)
	if err != nil {
		return PendingSignup{}, err
	}

	var pending PendingSignup
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return PendingSignup{}, fmt.Errorf("decode pending signup: %w", err)
	}
	return pending, nil
}

func (s *RedisStore) DeletePending(ctx context.Context, email string) error {
	return s.client.Del(ctx, pendingKeyPrefix+email).Err()
}

func (s *RedisStore) PutResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, resetKeyPrefix+email, code, ttl).Err()
}

func (s *RedisStore) GetResetCode(ctx context.Context, email string) (string, error) {
	return s.getString(ctx, resetKeyPrefix+email)
}

func (s *RedisStore) DeleteResetCode(ctx context.Context, email string) error {
	return s.client.Del(ctx, resetKeyPrefix+email).Err()
}

func (s *RedisStore) getString(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return val, nil
}

var _ Store = (*RedisStore)(nil)
