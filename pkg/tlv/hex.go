package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings.
// Spaces are ignored so APDUs can be written as "80 A8 00 00".
// It panics on invalid input and is meant for fixtures and static tables.
func Hex(parts ...string) []byte {
	fullHex := strings.Join(parts, "")
	cleanHex := strings.ReplaceAll(fullHex, " ", "")

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}

// ParseHex is the non-panicking form of Hex, used for user supplied values
// such as configuration entries.
func ParseHex(s string) ([]byte, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return data, nil
}
