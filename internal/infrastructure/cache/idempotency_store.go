package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/suiflow/suiflow_service/pkg/idempotency"
)

const idempotencyKeyPrefix = "suiflow:idempotency:"

// IdempotencyStore keeps idempotency records in Redis
type IdempotencyStore struct {
	client RedisClient
}

func NewIdempotencyStore(client RedisClient) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Get returns the record for key, or nil when none exists.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var record idempotency.Record
	if err := s.client.Get(ctx, idempotencyKeyPrefix+key, &record); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	return &record, nil
}

// Reserve stores a pending record unless the key is already taken.
func (s *IdempotencyStore) Reserve(ctx context.Context, record *idempotency.Record, ttl time.Duration) (bool, error) {
	pending := *record
	pending.Status = 0
	pending.Body = nil
	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+record.Key, &pending, ttl)
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Complete overwrites the pending record with the final response.
func (s *IdempotencyStore) Complete(ctx context.Context, record *idempotency.Record, ttl time.Duration) error {
	if err := s.client.Set(ctx, idempotencyKeyPrefix+record.Key, record, ttl); err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

var _ idempotency.Store = (*IdempotencyStore)(nil)
