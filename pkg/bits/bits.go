// Package bits names bits the way ISO/IEC 7816 and X.690 tables do:
// b8 is the most significant bit of a byte, b1 the least significant.
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

// Mask returns a byte with bits high down to low set.
// Example: Mask(5, 1) returns 0x1F.
func Mask(high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}
	width := high - low + 1
	return byte((1<<width)-1) << (low - 1)
}

// GetRange extracts the value from a range of bits (e.g., bits 4 to 3).
// Example: GetRange(0b00001100, 4, 3) returns 3 (0b11)
func GetRange(b byte, high, low uint) byte {
	m := Mask(high, low)
	if m == 0 {
		return 0
	}
	return (b & m) >> (low - 1)
}

// AllSet reports whether every bit from high down to low is set.
// BER uses it to spot the "tag number follows" escape (b5-b1 = 11111).
func AllSet(b byte, high, low uint) bool {
	m := Mask(high, low)
	return m != 0 && b&m == m
}

// Set returns b with the n-th bit set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear returns b with the n-th bit cleared.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}
