// Package fixedpoint implements signed 17.14 fixed-point arithmetic
// (1 sign bit, 17 integer bits, 14 fractional bits), the format spec.md
// §4.A requires for all MLFQ accounting. No floating point is used anywhere
// in this kernel's scheduling math.
//
// Grounded on the newtype-with-value-receiver-methods style of
// mit-pdos-biscuit/biscuit/src/accnt/accnt.go (Accnt_t) and on the equation
// set in original_source/threads/thread.c, which calls out to
// lib/fp_arithmetic.h's INT_ADD/INT_MULTIPLY/MULTIPLY/DIVIDE/ROUND_ZERO/
// ROUND_CLOSEST helpers — the operations below are that helper's Go
// equivalent, collapsed onto a single Fix_t type instead of bare ints.
package fixedpoint

const fracBits = 14

// Fix_t is a signed 17.14 fixed-point value.
type Fix_t int32

// one represents the fixed-point value 1.
const one Fix_t = 1 << fracBits

// FromInt converts an integer to fixed point.
func FromInt(n int) Fix_t {
	return Fix_t(n) * one
}

// Add returns f+g.
func (f Fix_t) Add(g Fix_t) Fix_t {
	return f + g
}

// Sub returns f-g.
func (f Fix_t) Sub(g Fix_t) Fix_t {
	return f - g
}

// AddInt returns f+n.
func (f Fix_t) AddInt(n int) Fix_t {
	return f + FromInt(n)
}

// SubInt returns f-n.
func (f Fix_t) SubInt(n int) Fix_t {
	return f - FromInt(n)
}

// MulInt returns f*n.
func (f Fix_t) MulInt(n int) Fix_t {
	return f * Fix_t(n)
}

// DivInt returns f/n.
func (f Fix_t) DivInt(n int) Fix_t {
	return f / Fix_t(n)
}

// Mul returns f*g, computed with a widened 64-bit intermediate to avoid
// overflow of the doubled fractional bits before rescaling.
func (f Fix_t) Mul(g Fix_t) Fix_t {
	return Fix_t((int64(f) * int64(g)) >> fracBits)
}

// Div returns f/g, computed with a widened 64-bit intermediate.
func (f Fix_t) Div(g Fix_t) Fix_t {
	return Fix_t((int64(f) << fracBits) / int64(g))
}

// Trunc rounds toward zero.
func (f Fix_t) Trunc() int {
	return int(f / one)
}

// Round rounds to the nearest integer (ties away from zero).
func (f Fix_t) Round() int {
	if f >= 0 {
		return int((f + one/2) / one)
	}
	return int((f - one/2) / one)
}
