package models

import (
	"math/big"
	"strings"
	"time"

	pricing "phonelease/internal/pricing/models"
	resolution "phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
)

// Flags restrict what the parent authority and the holder may do with a
// lease once written.
type Flags uint16

const (
	FlagCannotTransfer Flags = 1 << iota
	FlagCannotRevoke
	FlagParentCannotControl

	// Unruggable is written on every registration.
	Unruggable = FlagCannotTransfer | FlagCannotRevoke | FlagParentCannotControl
)

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Names lists the set flags in bit order.
func (f Flags) Names() []string {
	var out []string
	if f.Has(FlagCannotTransfer) {
		out = append(out, "cannot_transfer")
	}
	if f.Has(FlagCannotRevoke) {
		out = append(out, "cannot_revoke")
	}
	if f.Has(FlagParentCannotControl) {
		out = append(out, "parent_cannot_control")
	}
	return out
}

func (f Flags) String() string {
	return strings.Join(f.Names(), "|")
}

// Record is what the ownership adapter stores per identifier.
type Record struct {
	Identifier domain.Identifier
	Owner      domain.Identity
	Flags      Flags
	Expiry     time.Time
}

// ActiveAt reports whether the lease is unexpired at now.
func (r Record) ActiveAt(now time.Time) bool {
	return now.Before(r.Expiry)
}

// State is derived from a record's expiry; it is never stored.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

// Lease is a record with its state at a given instant.
type Lease struct {
	Record
	State State
}

func NewLease(r Record, now time.Time) *Lease {
	state := StateExpired
	if r.ActiveAt(now) {
		state = StateActive
	}
	return &Lease{Record: r, State: state}
}

// RegisterCommand asks for a fresh lease. Identifier and Tier are raw input
// validated by the ledger.
type RegisterCommand struct {
	Identifier string
	Tier       string
	Duration   time.Duration
	Payment    *big.Int
	Caller     domain.Identity
	// BindAddress, when set, asks for a setAddr deferred lookup for the
	// identifier's node once the lease is written.
	BindAddress *domain.Identity
}

// RenewCommand extends an existing lease.
type RenewCommand struct {
	Identifier string
	Tier       string
	Duration   time.Duration
	Payment    *big.Int
	Caller     domain.Identity
}

// Receipt reports the outcome of a register or renew.
type Receipt struct {
	Lease    *Lease
	Quote    *pricing.FeeQuote
	Refunded *big.Int
	// FeeForwarded is false when the treasury rejected the fee and it was
	// added to the stuck balance.
	FeeForwarded bool
	Binding      *resolution.LookupDescriptor
}
