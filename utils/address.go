package utils

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// addressPattern matches a 20-byte hex address with an optional 0x prefix
// (42 characters in total with the prefix).
var addressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

// IsValidAddress reports whether s is a well-formed blockchain address.
// Format is checked here, before anything touches the chain.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(strings.TrimSpace(s))
}

// ParseAddress validates s and returns its checksummed address. The second
// return value is false when the format is invalid.
func ParseAddress(s string) (common.Address, bool) {
	trimmed := strings.TrimSpace(s)
	if !addressPattern.MatchString(trimmed) {
		return common.Address{}, false
	}
	return common.HexToAddress(trimmed), true
}
