// Package leb128 decodes and encodes the variable length integers used
// throughout DWARF (DWARF v4 section 7.6).
package leb128

// DecodeUnsigned decodes an unsigned Little Endian Base 128 number from the
// start of encoded.
//
// It returns the decoded value and the number of bytes consumed. A length of
// zero means encoded ended before the last byte of the number was seen.
func DecodeUnsigned(encoded []byte) (uint64, int) {
	var (
		result uint64
		shift  uint
	)

	for i, b := range encoded {
		if shift < 64 {
			result |= uint64(b&0x7f) << shift
		}
		if b&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
	}

	return 0, 0
}

// DecodeSigned decodes a signed Little Endian Base 128 number from the start
// of encoded, sign extending the last byte.
//
// It returns the decoded value and the number of bytes consumed. A length of
// zero means encoded ended before the last byte of the number was seen.
func DecodeSigned(encoded []byte) (int64, int) {
	var (
		result int64
		shift  uint
	)

	for i, b := range encoded {
		if shift < 64 {
			result |= int64(b&0x7f) << shift
		}
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1
		}
	}

	return 0, 0
}
