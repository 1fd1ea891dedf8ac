package models

// FeeQuoteResponse is the HTTP form of FeeQuote. Amounts are decimal strings.
type FeeQuoteResponse struct {
	Tier            string `json:"tier"`
	DurationSeconds int64  `json:"duration_seconds"`
	Years           uint64 `json:"years"`
	PricePerYear    string `json:"price_per_year"`
	TotalPrice      string `json:"total_price"`
}

func NewFeeQuoteResponse(q FeeQuote) FeeQuoteResponse {
	return FeeQuoteResponse{
		Tier:            q.Tier.String(),
		DurationSeconds: int64(q.Duration.Seconds()),
		Years:           q.Years,
		PricePerYear:    q.PricePerYear.String(),
		TotalPrice:      q.Total.String(),
	}
}

type PriceTierResponse struct {
	Tier          string `json:"tier"`
	MultiplierBPS uint32 `json:"multiplier_bps"`
}

// PricingResponse lists the base price and stored multipliers.
type PricingResponse struct {
	BasePrice            string              `json:"base_price"`
	DefaultMultiplierBPS uint32              `json:"default_multiplier_bps"`
	MinDurationSeconds   int64               `json:"min_duration_seconds"`
	MaxDurationSeconds   int64               `json:"max_duration_seconds"`
	Tiers                []PriceTierResponse `json:"tiers"`
}
