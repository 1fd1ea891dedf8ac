package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrConflict: a concurrent writer won the race for the same record
// - ErrExpired: record or signed payload has expired
// - ErrInvalidState: record in wrong state for requested operation
// - ErrUnavailable: backing service temporarily unavailable
// - ErrInsufficientFunds: an account balance does not cover a debit
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")

	ErrInsufficientFunds = errors.New("insufficient funds")
)
