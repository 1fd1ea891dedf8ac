package store

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"phonelease/internal/registration/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/sentinel"
)

// InMemoryStore keeps leases and the stuck-fee balance in process memory.
// Transactions stage writes on a private overlay and publish them only when
// the transaction function succeeds.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[domain.Identifier]models.Record
	stuck    *big.Int
	callback Callback
}

type MemoryOption func(*InMemoryStore)

// WithCallback registers the receiver notified on each SetRecord.
func WithCallback(cb Callback) MemoryOption {
	return func(s *InMemoryStore) {
		s.callback = cb
	}
}

func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		records: make(map[domain.Identifier]models.Record),
		stuck:   new(big.Int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCallback is used when the receiver is constructed after the store.
func (s *InMemoryStore) SetCallback(cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// RunInTx runs fn against a staged view. Writes become visible only if fn
// returns nil.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(OwnershipAdapter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		base:     s.records,
		staged:   make(map[domain.Identifier]models.Record),
		callback: s.callback,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, rec := range tx.staged {
		s.records[id] = rec
	}
	return nil
}

func (s *InMemoryStore) GetRecord(_ context.Context, id domain.Identifier) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemoryStore) CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return canModify(rec, actor), nil
}

func (s *InMemoryStore) AddStuckFees(_ context.Context, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stuck.Add(s.stuck, amount)
	return nil
}

func (s *InMemoryStore) StuckFees(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.stuck), nil
}

// SubStuckFees lowers the balance; it fails with sentinel.ErrInvalidState
// rather than going negative.
func (s *InMemoryStore) SubStuckFees(_ context.Context, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stuck.Cmp(amount) < 0 {
		return sentinel.ErrInvalidState
	}
	s.stuck.Sub(s.stuck, amount)
	return nil
}

type memoryTx struct {
	base     map[domain.Identifier]models.Record
	staged   map[domain.Identifier]models.Record
	callback Callback
}

func (tx *memoryTx) SetRecord(ctx context.Context, record models.Record) error {
	if tx.callback != nil {
		if err := tx.callback.AcknowledgeRecord(ctx, record); err != nil {
			return err
		}
	}
	tx.staged[record.Identifier] = record
	return nil
}

func (tx *memoryTx) GetRecord(_ context.Context, id domain.Identifier) (*models.Record, error) {
	if rec, ok := tx.staged[id]; ok {
		return &rec, nil
	}
	if rec, ok := tx.base[id]; ok {
		return &rec, nil
	}
	return nil, sentinel.ErrNotFound
}

func (tx *memoryTx) CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error) {
	rec, err := tx.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return canModify(rec, actor), nil
}
