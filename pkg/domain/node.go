package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	dErrors "phonelease/pkg/domain-errors"
)

// Node is the 32-byte resolution key for an identifier.
type Node [32]byte

// ParseNode parses a 0x-prefixed 32-byte hex string.
func ParseNode(s string) (Node, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Node{}, dErrors.New(dErrors.CodeValidation, "node must be 0x-prefixed hex")
	}
	if len(b) != len(Node{}) {
		return Node{}, dErrors.New(dErrors.CodeValidation, "node must be 32 bytes")
	}
	var n Node
	copy(n[:], b)
	return n, nil
}

func (n Node) Hex() string {
	return common.Hash(n).Hex()
}

func (n Node) String() string {
	return n.Hex()
}

// CoinTypeETH is the SLIP-44 coin type used when binding an address at
// registration time.
const CoinTypeETH uint64 = 60
