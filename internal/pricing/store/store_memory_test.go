package store

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"

	"phonelease/internal/pricing/models"
	"phonelease/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory(big.NewInt(100))
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestBasePriceIsCopied() {
	p, err := s.store.BasePrice(s.ctx)
	s.Require().NoError(err)
	p.SetInt64(1)

	again, _ := s.store.BasePrice(s.ctx)
	s.Equal(int64(100), again.Int64())
}

func (s *InMemoryStoreSuite) TestMultiplierLifecycle() {
	_, err := s.store.Multiplier(s.ctx, "44")
	s.True(errors.Is(err, sentinel.ErrNotFound))

	s.Require().NoError(s.store.SetMultiplier(s.ctx, models.PriceTier{Tier: "44", MultiplierBPS: 15000}))
	s.Require().NoError(s.store.SetMultiplier(s.ctx, models.PriceTier{Tier: "1", MultiplierBPS: 5000}))

	bps, err := s.store.Multiplier(s.ctx, "44")
	s.Require().NoError(err)
	s.Equal(uint32(15000), bps)

	list, err := s.store.ListMultipliers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.PriceTier{{Tier: "1", MultiplierBPS: 5000}, {Tier: "44", MultiplierBPS: 15000}}, list)

	removed, err := s.store.RemoveMultiplier(s.ctx, "44")
	s.Require().NoError(err)
	s.Equal(uint32(15000), removed)

	_, err = s.store.RemoveMultiplier(s.ctx, "44")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
