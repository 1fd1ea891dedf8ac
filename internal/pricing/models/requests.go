package models

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
)

// QuoteQuery is parsed from GET /v1/pricing/quote.
type QuoteQuery struct {
	Tier            string
	DurationSeconds string

	tier     domain.Tier
	duration time.Duration
}

func (q *QuoteQuery) Validate() error {
	tier, err := domain.ParseTier(q.Tier)
	if err != nil {
		return err
	}
	d, err := ParseDurationSeconds(q.DurationSeconds)
	if err != nil {
		return err
	}
	q.tier, q.duration = tier, d
	return nil
}

func (q *QuoteQuery) ParsedTier() domain.Tier {
	return q.tier
}

func (q *QuoteQuery) ParsedDuration() time.Duration {
	return q.duration
}

// SetBasePriceRequest replaces the base price.
type SetBasePriceRequest struct {
	Price string `json:"price"`

	price *big.Int
}

func (r *SetBasePriceRequest) Validate() error {
	p, err := ParseAmount(r.Price, "price")
	if err != nil {
		return err
	}
	r.price = p
	return nil
}

func (r *SetBasePriceRequest) ParsedPrice() *big.Int {
	return r.price
}

// SetMultiplierRequest stores a multiplier for the tier in the path.
type SetMultiplierRequest struct {
	MultiplierBPS uint32 `json:"multiplier_bps"`
}

func (r *SetMultiplierRequest) Validate() error {
	return nil
}

// ParseDurationSeconds reads a positive integer number of seconds.
func ParseDurationSeconds(raw string) (time.Duration, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "duration_seconds must be a positive integer")
	}
	if secs > int64((1<<63-1)/time.Second) {
		return 0, dErrors.New(dErrors.CodeValidation, "duration_seconds is out of range")
	}
	return time.Duration(secs) * time.Second, nil
}

// ParseAmount reads a non-negative base-10 integer amount.
func ParseAmount(raw, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be a non-negative base-10 integer", field)
	}
	return v, nil
}
