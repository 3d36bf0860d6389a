// Package bits holds the 1-indexed bit helpers used by the EMV and ISO 7816
// bitmask codecs. Bit 1 is the least significant bit, bit 8 the most
// significant, matching the numbering of the EMV Book 3 annex tables.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// GetRange extracts the value from a range of bits (e.g., bits 4 to 3).
// Example: GetRange(0b00001100, 4, 3) returns 3 (0b11)
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

// Set returns b with the n-th bit raised.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear returns b with the n-th bit lowered.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}

// Assign raises or lowers the n-th bit depending on on.
func Assign(b byte, n uint, on bool) byte {
	if on {
		return Set(b, n)
	}
	return Clear(b, n)
}

// Mask returns a byte with every listed bit set. Out-of-range positions are ignored.
func Mask(positions ...uint) byte {
	var m byte
	for _, n := range positions {
		m |= Bit(n)
	}
	return m
}
