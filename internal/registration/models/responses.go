package models

import (
	"time"

	pricing "phonelease/internal/pricing/models"
	resolution "phonelease/internal/resolution/models"
)

// LeaseResponse is the JSON form of a Lease.
type LeaseResponse struct {
	Identifier string    `json:"identifier"`
	Node       string    `json:"node"`
	Owner      string    `json:"owner"`
	Flags      []string  `json:"flags"`
	Expiry     time.Time `json:"expiry"`
	State      State     `json:"state"`
}

func NewLeaseResponse(l *Lease) LeaseResponse {
	return LeaseResponse{
		Identifier: l.Identifier.String(),
		Node:       l.Identifier.Node().Hex(),
		Owner:      l.Owner.Hex(),
		Flags:      l.Flags.Names(),
		Expiry:     l.Expiry.UTC(),
		State:      l.State,
	}
}

// ReceiptResponse is returned by register and renew.
type ReceiptResponse struct {
	Lease        LeaseResponse                  `json:"lease"`
	Quote        pricing.FeeQuoteResponse       `json:"quote"`
	Refunded     string                         `json:"refunded"`
	FeeForwarded bool                           `json:"fee_forwarded"`
	Binding      *resolution.DescriptorResponse `json:"binding,omitempty"`
}

func NewReceiptResponse(r *Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		Lease:        NewLeaseResponse(r.Lease),
		Refunded:     "0",
		FeeForwarded: r.FeeForwarded,
		Binding:      resolution.NewDescriptorResponse(r.Binding),
	}
	if r.Quote != nil {
		resp.Quote = pricing.NewFeeQuoteResponse(*r.Quote)
	}
	if r.Refunded != nil {
		resp.Refunded = r.Refunded.String()
	}
	return resp
}

type AvailabilityResponse struct {
	Identifier string `json:"identifier"`
	Available  bool   `json:"available"`
}

type WithdrawResponse struct {
	Amount string `json:"amount"`
}

type StuckFeesResponse struct {
	StuckFees string `json:"stuck_fees"`
}
