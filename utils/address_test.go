package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{"valid with prefix", "0x3A3652a47A9a351F98149ecC76806F83B7719294", true},
		{"valid without prefix", "3A3652a47A9a351F98149ecC76806F83B7719294", true},
		{"valid all lowercase", "0xab602fac892e965d883691120ac9619e1168f36f", true},
		{"valid with surrounding spaces", "  0x3A3652a47A9a351F98149ecC76806F83B7719294  ", true},
		{"empty", "", false},
		{"too short", "0x3A3652a47A9a351F98149ecC76806F83B77192", false},
		{"too long", "0x3A3652a47A9a351F98149ecC76806F83B771929400", false},
		{"non-hex characters", "0x3A3652a47A9a351F98149ecC76806F83B771929Z", false},
		{"random text", "not-an-address", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidAddress(tt.address))
		})
	}
}

func TestParseAddressChecksums(t *testing.T) {
	parsed, ok := ParseAddress("0xab602fac892e965d883691120ac9619e1168f36f")
	assert.True(t, ok)
	// Hex() returns the EIP-55 checksummed representation.
	assert.Equal(t, "0xab602Fac892e965d883691120AC9619e1168F36f", parsed.Hex())

	_, ok = ParseAddress("definitely not hex")
	assert.False(t, ok)
}
