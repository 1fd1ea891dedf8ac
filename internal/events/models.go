package events

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"phonelease/pkg/domain"
)

// Type names an observable state change.
type Type string

const (
	// Ledger events
	TypeRegistered       Type = "registered"
	TypeRenewed          Type = "renewed"
	TypeFeesCollected    Type = "fees_collected"
	TypeWithdrawalFailed Type = "withdrawal_failed"

	// Pricing events
	TypeBasePriceUpdated         Type = "base_price_updated"
	TypeCountryMultiplierSet     Type = "country_multiplier_set"
	TypeCountryMultiplierRemoved Type = "country_multiplier_removed"

	// Resolver events
	TypeSignerUpdated     Type = "signer_updated"
	TypeGatewayURLUpdated Type = "gateway_url_updated"
	TypeAddressUpdated    Type = "address_updated"

	// Administrative events
	TypeOwnershipTransferred Type = "ownership_transferred"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out. Only the fields relevant to the
// event type are set.
type Event struct {
	ID         uuid.UUID
	Type       Type
	OccurredAt time.Time
	RequestID  string

	Identifier domain.Identifier
	Owner      domain.Identity
	Expiry     time.Time

	PreviousOwner domain.Identity

	Amount     *big.Int
	Tier       domain.Tier
	Multiplier uint32

	Signer domain.Identity
	URL    string

	Node     domain.Node
	CoinType uint64
	Value    []byte
}

// Key returns the partition key used by ordered sinks: events about the
// same identifier (or node) share a key.
func (e Event) Key() string {
	switch {
	case e.Identifier != "":
		return e.Identifier.String()
	case e.Node != (domain.Node{}):
		return e.Node.Hex()
	default:
		return string(e.Type)
	}
}
