package vrp

import (
	"fmt"
	"math/big"
)

// A Range is a closed interval [lower, upper] over the extended integers,
// or the empty set. The full range [−∞, +∞] means "unknown", the empty
// range means "unreachable".
type Range struct {
	lower, upper Z
	empty        bool
}

// NewRange returns the interval [lower, upper]. A crossed pair of bounds
// yields the empty range.
func NewRange(lower, upper Z) Range {
	if upper.Cmp(lower) == -1 {
		return EmptyRange
	}
	return Range{lower: lower, upper: upper}
}

// EmptyRange is the empty set.
var EmptyRange = Range{empty: true}

// FullRange is [−∞, +∞].
var FullRange = Range{lower: NInfinity, upper: PInfinity}

func (r Range) Lower() Z      { return r.lower }
func (r Range) Upper() Z      { return r.upper }
func (r Range) IsEmpty() bool { return r.empty }

// IsFull reports whether r is [−∞, +∞].
func (r Range) IsFull() bool {
	return !r.empty && r.lower == NInfinity && r.upper == PInfinity
}

// Contains reports whether the finite value n lies in r.
func (r Range) Contains(n *big.Int) bool {
	if r.empty {
		return false
	}
	z := NewBigZ(n)
	return r.lower.Cmp(z) <= 0 && z.Cmp(r.upper) <= 0
}

func (r Range) String() string {
	if r.empty {
		return "{}"
	}
	return fmt.Sprintf("[%s, %s]", r.lower, r.upper)
}

// Eq is componentwise equality on (lower, upper, empty).
func (r Range) Eq(other Range) bool {
	if r.empty || other.empty {
		return r.empty == other.empty
	}
	return r.lower.Eq(other.lower) && r.upper.Eq(other.upper)
}

// Intersect returns r ∩ other.
func (r Range) Intersect(other Range) Range {
	if r.empty || other.empty {
		return EmptyRange
	}
	return NewRange(MaxZ(r.lower, other.lower), MinZ(r.upper, other.upper))
}

// Union returns the interval hull of r ∪ other. The union of the empty
// range and any X is X.
func (r Range) Union(other Range) Range {
	if r.empty {
		return other
	}
	if other.empty {
		return r
	}
	return NewRange(MinZ(r.lower, other.lower), MaxZ(r.upper, other.upper))
}

// bounds is the saturating value lattice of one analysis: all arithmetic
// is performed over MaxBits+1 signed bits, where MIN = −2^MaxBits and
// MAX = 2^MaxBits − 1 stand in for the infinities. A finite result at or
// beyond a sentinel saturates to the corresponding infinity and stays
// there; values never wrap.
type bounds struct {
	maxBits int
	min     *big.Int // −2^maxBits
	max     *big.Int // 2^maxBits − 1
}

func newBounds(maxBits int) *bounds {
	if maxBits < 1 {
		maxBits = 1
	}
	min := new(big.Int).Lsh(big.NewInt(1), uint(maxBits))
	max := new(big.Int).Sub(min, big.NewInt(1))
	min.Neg(min)
	return &bounds{maxBits: maxBits, min: min, max: max}
}

// sat clamps a finite value outside [MIN+1, MAX−1] to the corresponding
// infinity.
func (bs *bounds) sat(z Z) Z {
	if z.Infinite() {
		return z
	}
	if z.integer.Cmp(bs.min) <= 0 {
		return NInfinity
	}
	if z.integer.Cmp(bs.max) >= 0 {
		return PInfinity
	}
	return z
}

func (bs *bounds) rng(lower, upper Z) Range {
	return NewRange(bs.sat(lower), bs.sat(upper))
}

func (bs *bounds) add(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	return bs.rng(a.lower.Add(b.lower), a.upper.Add(b.upper))
}

func (bs *bounds) sub(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	return bs.rng(a.lower.Sub(b.upper), a.upper.Sub(b.lower))
}

func (bs *bounds) mul(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	c1 := a.lower.Mul(b.lower)
	c2 := a.lower.Mul(b.upper)
	c3 := a.upper.Mul(b.lower)
	c4 := a.upper.Mul(b.upper)
	return bs.rng(MinZ(c1, c2, c3, c4), MaxZ(c1, c2, c3, c4))
}

// containsZero reports whether the interval admits a zero divisor.
func containsZero(r Range) bool {
	return r.lower.Sign() <= 0 && r.upper.Sign() >= 0
}

func (bs *bounds) sdiv(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if containsZero(b) {
		// The divisor may be zero; range analysis over-approximates
		// rather than modeling a fault.
		return FullRange
	}
	c1 := a.lower.Quo(b.lower)
	c2 := a.lower.Quo(b.upper)
	c3 := a.upper.Quo(b.lower)
	c4 := a.upper.Quo(b.upper)
	return bs.rng(MinZ(c1, c2, c3, c4), MaxZ(c1, c2, c3, c4))
}

func (bs *bounds) udiv(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if containsZero(b) {
		return FullRange
	}
	if a.lower.Sign() < 0 || b.lower.Sign() < 0 {
		// A possibly-negative operand reinterpreted as unsigned covers
		// the top of the unsigned domain.
		return FullRange
	}
	return bs.rng(a.lower.Quo(b.upper), a.upper.Quo(b.lower))
}

func (bs *bounds) urem(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if k, ok := singleton(b); ok && k.Sign() != 0 {
		abs := new(big.Int).Abs(k)
		return bs.rng(NewZ(0), NewBigZ(abs).Dec())
	}
	return FullRange
}

func (bs *bounds) srem(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if k, ok := singleton(b); ok && k.Sign() != 0 {
		abs := new(big.Int).Abs(k)
		hi := NewBigZ(abs).Dec()
		return bs.rng(hi.Negate(), hi)
	}
	return FullRange
}

// singleton returns the value of a one-point finite interval.
func singleton(r Range) (*big.Int, bool) {
	if r.empty || r.lower.Infinite() || !r.lower.Eq(r.upper) {
		return nil, false
	}
	return r.lower.integer, true
}

// shiftAmountOK reports whether every shift amount in b is within the
// normalized width.
func (bs *bounds) shiftAmountOK(b Range) bool {
	return b.lower.Sign() >= 0 && b.upper.Cmp(NewZ(int64(bs.maxBits))) < 0
}

func (bs *bounds) shl(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if !bs.shiftAmountOK(b) {
		return FullRange
	}
	lo := new(big.Int).Lsh(big.NewInt(1), uint(b.lower.integer.Int64()))
	hi := new(big.Int).Lsh(big.NewInt(1), uint(b.upper.integer.Int64()))
	return bs.mul(a, NewRange(NewBigZ(lo), NewBigZ(hi)))
}

func (bs *bounds) lshr(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if !bs.shiftAmountOK(b) {
		return FullRange
	}
	if a.lower.Sign() < 0 {
		// Logical shift of a negative value lands in the unsigned top
		// half; all we keep is non-negativity.
		return NewRange(NewZ(0), PInfinity)
	}
	lo := b.lower.integer.Int64()
	hi := b.upper.integer.Int64()
	return bs.rng(a.lower.Rsh(uint(hi)), a.upper.Rsh(uint(lo)))
}

func (bs *bounds) ashr(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if !bs.shiftAmountOK(b) {
		return FullRange
	}
	lo := uint(b.lower.integer.Int64())
	hi := uint(b.upper.integer.Int64())
	c1 := a.lower.Rsh(lo)
	c2 := a.lower.Rsh(hi)
	c3 := a.upper.Rsh(lo)
	c4 := a.upper.Rsh(hi)
	return bs.rng(MinZ(c1, c2, c3, c4), MaxZ(c1, c2, c3, c4))
}

func (bs *bounds) and(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if ka, ok := singleton(a); ok {
		if kb, ok := singleton(b); ok {
			r := NewBigZ(new(big.Int).And(ka, kb))
			return bs.rng(r, r)
		}
	}
	// x & y is in [0, y.upper] whenever y is non-negative, regardless of
	// the sign of x.
	uppers := make([]Z, 0, 2)
	if a.lower.Sign() >= 0 {
		uppers = append(uppers, a.upper)
	}
	if b.lower.Sign() >= 0 {
		uppers = append(uppers, b.upper)
	}
	if len(uppers) == 0 {
		return FullRange
	}
	return bs.rng(NewZ(0), MinZ(uppers...))
}

func (bs *bounds) or(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if ka, ok := singleton(a); ok {
		if kb, ok := singleton(b); ok {
			r := NewBigZ(new(big.Int).Or(ka, kb))
			return bs.rng(r, r)
		}
	}
	if a.lower.Sign() >= 0 && b.lower.Sign() >= 0 {
		return bs.rng(MaxZ(a.lower, b.lower), pow2Mask(MaxZ(a.upper, b.upper)))
	}
	return FullRange
}

func (bs *bounds) xor(a, b Range) Range {
	if a.empty || b.empty {
		return EmptyRange
	}
	if ka, ok := singleton(a); ok {
		if kb, ok := singleton(b); ok {
			r := NewBigZ(new(big.Int).Xor(ka, kb))
			return bs.rng(r, r)
		}
	}
	return FullRange
}

// pow2Mask returns next_pow2(z) − 1, the smallest all-ones mask covering
// the non-negative value z.
func pow2Mask(z Z) Z {
	if z.Infinite() {
		return z
	}
	mask := new(big.Int).Lsh(big.NewInt(1), uint(z.integer.BitLen()))
	mask.Sub(mask, big.NewInt(1))
	return NewBigZ(mask)
}

// signedWidth returns the interval of a signed w-bit integer.
func signedWidth(w int) Range {
	min := new(big.Int).Lsh(big.NewInt(1), uint(w-1))
	max := new(big.Int).Sub(min, big.NewInt(1))
	min.Neg(min)
	return NewRange(NewBigZ(min), NewBigZ(max))
}

// unsignedWidth returns the interval of an unsigned w-bit integer.
func unsignedWidth(w int) Range {
	max := new(big.Int).Lsh(big.NewInt(1), uint(w))
	max.Sub(max, big.NewInt(1))
	return NewRange(NewZ(0), NewBigZ(max))
}

// fitsIn reports whether every value of a lies in target.
func fitsIn(a, target Range) bool {
	if a.lower.Infinite() || a.upper.Infinite() {
		return false
	}
	return a.lower.Cmp(target.lower) >= 0 && a.upper.Cmp(target.upper) <= 0
}

func (bs *bounds) truncate(a Range, w int) Range {
	if a.empty {
		return EmptyRange
	}
	full := signedWidth(w)
	if fitsIn(a, full) {
		return a
	}
	return full
}

func (bs *bounds) sextOrTrunc(a Range, w int) Range {
	return bs.truncate(a, w)
}

func (bs *bounds) zextOrTrunc(a Range, w int) Range {
	if a.empty {
		return EmptyRange
	}
	full := unsignedWidth(w)
	if fitsIn(a, full) {
		return a
	}
	return full
}
