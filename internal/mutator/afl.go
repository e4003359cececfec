package mutator

import (
	"math"
)

// AFL-inspired interesting values for fuzzing
var (
	// Interesting 8-bit values
	interesting8 = []int64{
		-128, // INT8_MIN
		-1,   // 0xFF
		0,    // Zero
		1,    // One
		16,   // Common boundary
		32,   // Space, common boundary
		64,   // Common boundary
		100,  // Common test value
		127,  // INT8_MAX
	}

	// Interesting 16-bit values
	interesting16 = []int64{
		-32768, // INT16_MIN
		-129,   // Just below INT8_MIN
		128,    // Just above INT8_MAX
		255,    // UINT8_MAX
		256,    // UINT8_MAX + 1
		512,    // Common boundary
		1000,   // Common test value
		1024,   // Common boundary (2^10)
		4096,   // Common boundary (2^12)
		32767,  // INT16_MAX
	}

	// Interesting 32-bit values
	interesting32 = []int64{
		-2147483648, // INT32_MIN
		-100663046,  // Large negative
		-32769,      // Just below INT16_MIN
		32768,       // Just above INT16_MAX
		65535,       // UINT16_MAX
		65536,       // UINT16_MAX + 1
		100663045,   // Large positive
		2147483647,  // INT32_MAX
	}
)

// integerDelta is how far around each boundary the library walks
const integerDelta = 10

// MaxValue returns the largest unsigned value representable in width bits
func MaxValue(width int) uint64 {
	if width <= 0 {
		return 0
	}
	if width >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << uint(width)) - 1
}

// IntegerLibrary returns the ordered mutation values for an integer field of
// the given bit width. Values are raw bit patterns masked to width; signed
// fields get the AFL negative boundaries in two's complement. The original
// value never appears in the result.
func IntegerLibrary(width int, signed bool, original uint64) []uint64 {
	if width <= 0 {
		return nil
	}
	if width > 64 {
		width = 64
	}

	max := MaxValue(width)
	cases := []uint64{0, max, max / 2, max / 3, max / 4, max / 8, max / 16, max / 32}

	seen := make(map[uint64]bool)
	out := make([]uint64, 0, len(cases)*(2*integerDelta+1))
	add := func(v uint64) {
		v &= max
		if v == original&max || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	for _, c := range cases {
		add(c)
		for d := uint64(1); d <= integerDelta; d++ {
			if c >= d {
				add(c - d)
			}
			if max-c >= d {
				add(c + d)
			}
		}
	}

	interesting := append(append(append([]int64{}, interesting8...), interesting16...), interesting32...)
	for _, v := range interesting {
		if v < 0 {
			if !signed || !fitsSigned(v, width) {
				continue
			}
			add(uint64(v))
			continue
		}
		if uint64(v) <= max {
			add(uint64(v))
		}
	}

	return out
}

func fitsSigned(v int64, width int) bool {
	if width >= 64 {
		return true
	}
	min := -(int64(1) << uint(width-1))
	return v >= min
}
