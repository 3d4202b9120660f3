package leb128

// EncodeUnsigned appends x to out in unsigned Little Endian Base 128 format.
func EncodeUnsigned(out []byte, x uint64) []byte {
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if x == 0 {
			return out
		}
	}
}

// EncodeSigned appends x to out in signed Little Endian Base 128 format.
func EncodeSigned(out []byte, x int64) []byte {
	for {
		b := byte(x & 0x7f)
		x >>= 7

		signb := b & 0x40
		if (x == 0 && signb == 0) || (x == -1 && signb != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
