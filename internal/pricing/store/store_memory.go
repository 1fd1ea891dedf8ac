package store

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"phonelease/internal/pricing/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/sentinel"
)

// InMemoryStore keeps pricing configuration in process memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	basePrice   *big.Int
	multipliers map[domain.Tier]uint32
}

// NewInMemory seeds the store with the construction-time base price.
func NewInMemory(basePrice *big.Int) *InMemoryStore {
	return &InMemoryStore{
		basePrice:   new(big.Int).Set(basePrice),
		multipliers: make(map[domain.Tier]uint32),
	}
}

func (s *InMemoryStore) BasePrice(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.basePrice), nil
}

func (s *InMemoryStore) SetBasePrice(_ context.Context, price *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.basePrice = new(big.Int).Set(price)
	return nil
}

func (s *InMemoryStore) Multiplier(_ context.Context, tier domain.Tier) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bps, ok := s.multipliers[tier]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return bps, nil
}

func (s *InMemoryStore) SetMultiplier(_ context.Context, entry models.PriceTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multipliers[entry.Tier] = entry.MultiplierBPS
	return nil
}

// RemoveMultiplier deletes the entry and returns the removed value.
func (s *InMemoryStore) RemoveMultiplier(_ context.Context, tier domain.Tier) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bps, ok := s.multipliers[tier]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	delete(s.multipliers, tier)
	return bps, nil
}

// ListMultipliers returns stored entries ordered by tier.
func (s *InMemoryStore) ListMultipliers(_ context.Context) ([]models.PriceTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PriceTier, 0, len(s.multipliers))
	for tier, bps := range s.multipliers {
		out = append(out, models.PriceTier{Tier: tier, MultiplierBPS: bps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out, nil
}
