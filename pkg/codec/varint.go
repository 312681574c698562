// Package codec implements wire-level encoding primitives: LEB128
// varints, delta encoding for sorted sequences, and LSB-first
// bitpacking, plus the 128-doc postings block layout built on top of
// them.
package codec

import "github.com/kittclouds/retrieval-core/pkg/errs"

// MaxVarintLen64 is the maximum number of bytes a 64-bit varint can take.
const MaxVarintLen64 = 10

// AppendVarint appends the LEB128 (base-128, little-endian, continuation
// bit in the high bit) encoding of v to dst and returns the result.
func AppendVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// DecodeVarint decodes a varint from the front of buf, returning the
// value and the number of bytes consumed. Returns a *errs.FormatError if
// buf ends before a terminating byte, or the encoding overflows 64 bits.
func DecodeVarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if i >= MaxVarintLen64 {
			return 0, 0, &errs.FormatError{Message: "varint overflow past 64 bits"}
		}
		if i == MaxVarintLen64-1 && b > 1 {
			return 0, 0, &errs.FormatError{Message: "varint overflow past 64 bits"}
		}
		if b < 0x80 {
			return v | uint64(b)<<shift, i + 1, nil
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0, &errs.FormatError{Message: "varint missing terminator byte"}
}
