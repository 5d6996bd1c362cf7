package field

import (
	"fmt"
	"math"
	"strconv"

	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Numeric terms are encoded as fixed-width hexadecimal with the sign bit
// flipped, so lexicographic term order equals numeric order and range/prefix
// queries reduce to byte-range scans over the sorted term dictionary.

// EncodeInt64 returns the order-preserving term encoding of v.
func EncodeInt64(v int64) string {
	return fmt.Sprintf("%016x", uint64(v)^(1<<63))
}

// DecodeInt64 reverses EncodeInt64.
func DecodeInt64(s string) (int64, error) {
	bits, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, scerrors.Newf("decode", "", scerrors.ErrInvalidValue, "bad int64 term %q", s)
	}
	return int64(bits ^ (1 << 63)), nil
}

// EncodeFloat64 returns the order-preserving term encoding of v. Negative
// values have all bits flipped, positive values only the sign bit, the usual
// trick to make IEEE-754 order match lexicographic order.
func EncodeFloat64(v float64) string {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return fmt.Sprintf("%016x", bits)
}

// DecodeFloat64 reverses EncodeFloat64.
func DecodeFloat64(s string) (float64, error) {
	bits, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, scerrors.Newf("decode", "", scerrors.ErrInvalidValue, "bad float64 term %q", s)
	}
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// IntRange returns the subfield and encoded bounds for a numeric range query
// over [lo, hi].
func (f *Field) IntRange(lo, hi int64) (name, start, stop string) {
	return f.Name, EncodeInt64(lo), EncodeInt64(hi)
}

// FloatRange returns the subfield and encoded bounds for a float range query.
func (f *Field) FloatRange(lo, hi float64) (name, start, stop string) {
	return f.Name, EncodeFloat64(lo), EncodeFloat64(hi)
}
