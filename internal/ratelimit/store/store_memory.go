package store

import (
	"context"
	"sync"
	"time"

	"phonelease/internal/ratelimit/models"
)

// InMemoryStore is a per-process sliding window. Use RedisStore when several
// replicas must share one budget.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{windows: make(map[string][]time.Time), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records one request for key when it fits in the window.
func (s *InMemoryStore) Allow(_ context.Context, key string, policy models.Policy) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stamps := prune(s.windows[key], now.Add(-policy.Window))

	if len(stamps) >= policy.Limit {
		s.windows[key] = stamps
		resetAt := stamps[0].Add(policy.Window)
		return &models.Result{
			Allowed:    false,
			Limit:      policy.Limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}

	stamps = append(stamps, now)
	s.windows[key] = stamps
	return &models.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - len(stamps),
		ResetAt:   stamps[0].Add(policy.Window),
	}, nil
}

// Reset clears the window for key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// prune drops timestamps at or before cutoff.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
