package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"phonelease/pkg/platform/sentinel"
)

const defaultKeyPrefix = "phonelease:addr:"

// RedisStore keeps addresses in Redis so several gateway replicas answer
// consistently.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set stores value without expiry.
func (s *RedisStore) Set(ctx context.Context, key Key, value []byte) error {
	return s.client.Set(ctx, s.prefix+key.String(), value, 0).Err()
}
