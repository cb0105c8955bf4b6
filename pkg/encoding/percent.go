package encoding

import (
	"strings"
)

// upperhex is the alphabet used for percent-escape hex digits.
const upperhex = "0123456789ABCDEF"

// percentShouldEscape indicates whether or not a byte must be percent-escaped
// on the wire. Every byte that isn't an ASCII graphic character is escaped, as
// is the percent byte itself (since it introduces escapes) and the space byte
// (since it separates arguments).
func percentShouldEscape(value byte) bool {
	return value <= 0x20 || value >= 0x7F || value == '%'
}

// percentUnhex converts a hex digit to its value, returning false if the byte
// isn't a hex digit.
func percentUnhex(value byte) (byte, bool) {
	switch {
	case '0' <= value && value <= '9':
		return value - '0', true
	case 'a' <= value && value <= 'f':
		return value - 'a' + 10, true
	case 'A' <= value && value <= 'F':
		return value - 'A' + 10, true
	default:
		return 0, false
	}
}

// EncodePercent performs percent encoding of a protocol argument.
func EncodePercent(value string) string {
	// Scan for bytes requiring escapes. In the common case there are none and
	// the value can be returned directly.
	escapes := 0
	for i := 0; i < len(value); i++ {
		if percentShouldEscape(value[i]) {
			escapes++
		}
	}
	if escapes == 0 {
		return value
	}

	// Encode the value.
	result := make([]byte, 0, len(value)+2*escapes)
	for i := 0; i < len(value); i++ {
		if b := value[i]; percentShouldEscape(b) {
			result = append(result, '%', upperhex[b>>4], upperhex[b&0x0F])
		} else {
			result = append(result, b)
		}
	}
	return string(result)
}

// DecodePercent performs percent decoding of a protocol argument. Decoding
// never fails: malformed escape sequences are passed through literally and any
// invalid UTF-8 in the decoded byte sequence is replaced with the Unicode
// replacement character.
func DecodePercent(value string) string {
	// Decode escape sequences byte-wise.
	result := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if value[i] == '%' && i+2 < len(value) {
			if high, ok := percentUnhex(value[i+1]); ok {
				if low, ok := percentUnhex(value[i+2]); ok {
					result = append(result, high<<4|low)
					i += 2
					continue
				}
			}
		}
		result = append(result, value[i])
	}

	// Enforce UTF-8 validity.
	return strings.ToValidUTF8(string(result), "�")
}
