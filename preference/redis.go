package preference

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/redis"
)

// RedisStore keeps the kind under a single Redis key without expiry.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store on client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (backend.Kind, bool, error) {
	v, err := s.client.Get(ctx, s.key)
	if redis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading preference %s: %w", s.key, err)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false, nil
	}
	return backend.Kind(v), true, nil
}

func (s *RedisStore) Save(ctx context.Context, kind backend.Kind) error {
	if err := s.client.Set(ctx, s.key, kind.String(), 0); err != nil {
		return fmt.Errorf("saving preference %s: %w", s.key, err)
	}
	return nil
}
