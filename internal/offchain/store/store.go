// Package store holds the addresses the off-ledger gateway answers with.
package store

import (
	"strconv"

	"phonelease/pkg/domain"
)

// Key identifies one address slot.
type Key struct {
	Node     domain.Node
	CoinType uint64
}

func (k Key) String() string {
	return k.Node.Hex() + ":" + strconv.FormatUint(k.CoinType, 10)
}
