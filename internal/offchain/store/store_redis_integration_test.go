//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"phonelease/internal/offchain/store"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/sentinel"
	"phonelease/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client, store.WithKeyPrefix("test:addr:"))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSetAndGet() {
	ctx := context.Background()
	key := store.Key{Node: domain.Identifier("+15550001234").Node(), CoinType: 60}

	_, err := s.store.Get(ctx, key)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Set(ctx, key, []byte{0xb0}))
	got, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal([]byte{0xb0}, got)

	keys, err := s.redis.Client.Keys(ctx, "test:addr:*").Result()
	s.Require().NoError(err)
	s.Equal([]string{"test:addr:" + key.String()}, keys)
}

func (s *RedisStoreSuite) TestOverwrite() {
	ctx := context.Background()
	key := store.Key{Node: domain.Node{0x01}, CoinType: 0}

	s.Require().NoError(s.store.Set(ctx, key, []byte{0x01}))
	s.Require().NoError(s.store.Set(ctx, key, []byte{0x02}))
	got, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal([]byte{0x02}, got)
}
