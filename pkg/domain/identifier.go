package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	dErrors "phonelease/pkg/domain-errors"
)

const (
	minIdentifierDigits = 8
	maxIdentifierDigits = 15
	maxTierDigits       = 3
)

// Identifier is a validated phone-number-shaped registry key: a leading '+'
// followed by 8-15 digits, the first of which is non-zero.
type Identifier string

// ParseIdentifier validates s and returns it as an Identifier.
// Surrounding whitespace is not trimmed: registry keys are byte-exact.
func ParseIdentifier(s string) (Identifier, error) {
	digits, ok := strings.CutPrefix(s, "+")
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "identifier must start with '+'")
	}
	if len(digits) < minIdentifierDigits || len(digits) > maxIdentifierDigits {
		return "", dErrors.Newf(dErrors.CodeValidation, "identifier must have %d-%d digits", minIdentifierDigits, maxIdentifierDigits)
	}
	if !allDigits(digits) {
		return "", dErrors.New(dErrors.CodeValidation, "identifier must contain only digits after '+'")
	}
	if digits[0] == '0' {
		return "", dErrors.New(dErrors.CodeValidation, "identifier must start with a country code")
	}
	return Identifier(s), nil
}

func (i Identifier) String() string {
	return string(i)
}

// Digits returns the identifier without its leading '+'.
func (i Identifier) Digits() string {
	return strings.TrimPrefix(string(i), "+")
}

// InTier reports whether the identifier's digits start with the tier's
// country code.
func (i Identifier) InTier(t Tier) bool {
	return t != "" && strings.HasPrefix(i.Digits(), string(t))
}

// Node returns the resolution key for the identifier.
func (i Identifier) Node() Node {
	return Node(crypto.Keccak256Hash([]byte(i)))
}

// Tier is a pricing category keyed by country code.
type Tier string

// ParseTier validates a 1-3 digit country code with a non-zero first digit.
func ParseTier(s string) (Tier, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "tier is required")
	}
	if len(s) > maxTierDigits || !allDigits(s) || s[0] == '0' {
		return "", dErrors.New(dErrors.CodeValidation, "tier must be a 1-3 digit country code")
	}
	return Tier(s), nil
}

func (t Tier) String() string {
	return string(t)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
