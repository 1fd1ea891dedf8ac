package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "phonelease/pkg/domain-errors"
)

// Identity is an account address: lease owners, callers, the trusted signer
// and the resolver target are all Identities.
type Identity = common.Address

// ZeroIdentity is the unset identity.
var ZeroIdentity = Identity{}

// ParseIdentity parses a 0x-prefixed 20-byte hex address.
// The zero address is rejected.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroIdentity, dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return ZeroIdentity, dErrors.New(dErrors.CodeValidation, "identity must be 0x-prefixed")
	}
	if !common.IsHexAddress(s) {
		return ZeroIdentity, dErrors.New(dErrors.CodeValidation, "identity must be a 20-byte hex address")
	}
	id := common.HexToAddress(s)
	if id == ZeroIdentity {
		return ZeroIdentity, dErrors.New(dErrors.CodeValidation, "identity cannot be the zero address")
	}
	return id, nil
}
