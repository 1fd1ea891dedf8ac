// Package payments holds the money the ledger moves: the treasury that
// receives collected fees and the wallet that holds caller balances.
package payments

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"phonelease/pkg/domain"
	"phonelease/pkg/platform/sentinel"
)

var (
	// ErrRejected is returned by sinks configured to refuse transfers.
	ErrRejected = errors.New("transfer rejected")
	// ErrInvalidAmount is returned for deposits that are not positive.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// InMemoryTreasury accumulates collected fees.
type InMemoryTreasury struct {
	mu      sync.Mutex
	balance *big.Int
	failing bool
}

func NewInMemoryTreasury() *InMemoryTreasury {
	return &InMemoryTreasury{balance: new(big.Int)}
}

// Collect adds amount to the balance unless the treasury is failing.
func (t *InMemoryTreasury) Collect(_ context.Context, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing {
		return ErrRejected
	}
	t.balance.Add(t.balance, amount)
	return nil
}

// SetFailing makes subsequent Collect calls fail, like a treasury whose
// receive path rejects funds.
func (t *InMemoryTreasury) SetFailing(failing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failing = failing
}

func (t *InMemoryTreasury) Balance() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balance)
}

// Wallet holds caller balances. Funds enter through Deposit and leave
// through a settled hold; the excess of a payment is credited back when the
// hold settles.
type Wallet struct {
	mu       sync.Mutex
	balances map[domain.Identity]*big.Int
	held     map[domain.Identity]*big.Int
	failing  map[domain.Identity]bool
}

func NewWallet() *Wallet {
	return &Wallet{
		balances: make(map[domain.Identity]*big.Int),
		held:     make(map[domain.Identity]*big.Int),
		failing:  make(map[domain.Identity]bool),
	}
}

// Deposit credits amount to the identity.
func (w *Wallet) Deposit(_ context.Context, to domain.Identity, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	add(w.balances, to, amount)
	return nil
}

// Hold reserves payment from the identity's spendable balance. It fails with
// sentinel.ErrInsufficientFunds when the balance does not cover payment, and
// with ErrRejected when a non-zero refund could not be credited back. A
// successful hold must be followed by exactly one Settle or Release.
func (w *Wallet) Hold(_ context.Context, from domain.Identity, payment, refund *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.spendable(from).Cmp(payment) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	if refund.Sign() > 0 && w.failing[from] {
		return ErrRejected
	}
	add(w.held, from, payment)
	return nil
}

// Settle takes a held payment and credits refund back to the same identity.
func (w *Wallet) Settle(_ context.Context, from domain.Identity, payment, refund *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	add(w.held, from, new(big.Int).Neg(payment))
	add(w.balances, from, new(big.Int).Sub(refund, payment))
}

// Release drops a hold without moving funds.
func (w *Wallet) Release(_ context.Context, from domain.Identity, payment *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	add(w.held, from, new(big.Int).Neg(payment))
}

// Reject makes holds that need a refund to the identity fail.
func (w *Wallet) Reject(id domain.Identity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failing[id] = true
}

// Balance is the spendable balance: deposits and refunds minus settled and
// held payments.
func (w *Wallet) Balance(id domain.Identity) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spendable(id)
}

func (w *Wallet) spendable(id domain.Identity) *big.Int {
	out := new(big.Int)
	if bal, ok := w.balances[id]; ok {
		out.Set(bal)
	}
	if held, ok := w.held[id]; ok {
		out.Sub(out, held)
	}
	return out
}

func add(m map[domain.Identity]*big.Int, id domain.Identity, delta *big.Int) {
	bal, ok := m[id]
	if !ok {
		bal = new(big.Int)
		m[id] = bal
	}
	bal.Add(bal, delta)
	if bal.Sign() == 0 {
		delete(m, id)
	}
}
