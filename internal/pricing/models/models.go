package models

import (
	"fmt"
	"math/big"
	"time"

	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
)

const (
	// Year is the unit fees are charged in.
	Year = 365 * 24 * time.Hour

	// DefaultMultiplierBPS applies to tiers without a stored entry. Storing it
	// explicitly is rejected.
	DefaultMultiplierBPS uint32 = 10_000
)

// PriceTier is a stored multiplier for one country code.
type PriceTier struct {
	Tier          domain.Tier
	MultiplierBPS uint32
}

// ValidateMultiplier enforces the stored-entry bounds.
func ValidateMultiplier(bps uint32) error {
	if bps == 0 {
		return dErrors.New(dErrors.CodeValidation, "multiplier must be greater than zero")
	}
	if bps == DefaultMultiplierBPS {
		return dErrors.New(dErrors.CodeValidation, "multiplier 10000 is the default; remove the entry instead")
	}
	return nil
}

// FeeQuote is a derived price for a tier and duration. Never persisted.
type FeeQuote struct {
	Tier         domain.Tier
	Duration     time.Duration
	Years        uint64
	PricePerYear *big.Int
	Total        *big.Int
}

// Bounds limits the duration of every fee computation and lease mutation.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

// Check fails with a validation error when d is outside [Min, Max].
func (b Bounds) Check(d time.Duration) error {
	if d < b.Min || d > b.Max {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("duration must be between %s and %s", b.Min, b.Max))
	}
	return nil
}

// Years rounds d up to whole pricing years.
func Years(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64((d + Year - 1) / Year)
}
