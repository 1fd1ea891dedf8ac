package models

import (
	"math/big"
	"time"

	pricing "phonelease/internal/pricing/models"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
)

// RegisterRequest is the body of POST /v1/leases.
type RegisterRequest struct {
	Identifier      string `json:"identifier"`
	Tier            string `json:"tier"`
	DurationSeconds string `json:"duration_seconds"`
	Payment         string `json:"payment"`
	BindAddress     string `json:"bind_address,omitempty"`

	duration time.Duration
	payment  *big.Int
	bind     *domain.Identity
}

func (r *RegisterRequest) Validate() error {
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier is required")
	}
	if r.Tier == "" {
		return dErrors.New(dErrors.CodeValidation, "tier is required")
	}
	var err error
	if r.duration, err = pricing.ParseDurationSeconds(r.DurationSeconds); err != nil {
		return err
	}
	if r.payment, err = pricing.ParseAmount(r.Payment, "payment"); err != nil {
		return err
	}
	if r.BindAddress != "" {
		addr, err := domain.ParseIdentity(r.BindAddress)
		if err != nil {
			return err
		}
		r.bind = &addr
	}
	return nil
}

// Command builds the ledger command for caller.
func (r *RegisterRequest) Command(caller domain.Identity) RegisterCommand {
	return RegisterCommand{
		Identifier:  r.Identifier,
		Tier:        r.Tier,
		Duration:    r.duration,
		Payment:     r.payment,
		Caller:      caller,
		BindAddress: r.bind,
	}
}

// RenewRequest is the body of POST /v1/leases/{identifier}/renew.
type RenewRequest struct {
	Tier            string `json:"tier"`
	DurationSeconds string `json:"duration_seconds"`
	Payment         string `json:"payment"`

	duration time.Duration
	payment  *big.Int
}

func (r *RenewRequest) Validate() error {
	if r.Tier == "" {
		return dErrors.New(dErrors.CodeValidation, "tier is required")
	}
	var err error
	if r.duration, err = pricing.ParseDurationSeconds(r.DurationSeconds); err != nil {
		return err
	}
	if r.payment, err = pricing.ParseAmount(r.Payment, "payment"); err != nil {
		return err
	}
	return nil
}

func (r *RenewRequest) Command(identifier string, caller domain.Identity) RenewCommand {
	return RenewCommand{
		Identifier: identifier,
		Tier:       r.Tier,
		Duration:   r.duration,
		Payment:    r.payment,
		Caller:     caller,
	}
}
