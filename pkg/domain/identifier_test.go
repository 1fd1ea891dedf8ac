package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "phonelease/pkg/domain-errors"
)

// TestParseIdentifier_Invariants validates the registry key format at the
// trust boundary: leading '+', 8-15 digits, country-code first digit.
func TestParseIdentifier_Invariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"minimum length", "+15551234", true},
		{"maximum length", "+" + strings.Repeat("4", 15), true},
		{"typical US number", "+15555550100", true},
		{"missing plus", "15555550100", false},
		{"too short", "+1555123", false},
		{"too long", "+" + strings.Repeat("4", 16), false},
		{"leading zero country code", "+05555550100", false},
		{"embedded letter", "+1555555O100", false},
		{"embedded space", "+1555 5550100", false},
		{"surrounding whitespace", " +15555550100", false},
		{"double plus", "++15555550100", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentifier(tt.input)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.input, id.String())
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestIdentifierTier(t *testing.T) {
	id, err := ParseIdentifier("+447700900123")
	require.NoError(t, err)

	uk, err := ParseTier("44")
	require.NoError(t, err)
	us, err := ParseTier("1")
	require.NoError(t, err)

	assert.True(t, id.InTier(uk))
	assert.False(t, id.InTier(us))
	assert.False(t, id.InTier(""))
	assert.Equal(t, "447700900123", id.Digits())
}

func TestParseTier(t *testing.T) {
	t.Run("accepts plus-prefixed codes", func(t *testing.T) {
		tier, err := ParseTier("+44")
		require.NoError(t, err)
		assert.Equal(t, Tier("44"), tier)
	})

	for _, input := range []string{"", "0", "01", "1234", "4a"} {
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := ParseTier(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestNode(t *testing.T) {
	a, err := ParseIdentifier("+15555550100")
	require.NoError(t, err)
	b, err := ParseIdentifier("+15555550101")
	require.NoError(t, err)

	assert.NotEqual(t, a.Node(), b.Node())
	assert.Equal(t, a.Node(), a.Node())

	parsed, err := ParseNode(a.Node().Hex())
	require.NoError(t, err)
	assert.Equal(t, a.Node(), parsed)

	_, err = ParseNode("0x1234")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = ParseNode("not-hex")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), id[19])

	for _, input := range []string{
		"",
		"00000000000000000000000000000000000000aa",
		"0x1234",
		"0x0000000000000000000000000000000000000000",
	} {
		_, err := ParseIdentity(input)
		require.Error(t, err, input)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), input)
	}
}
