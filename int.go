package vrp

import (
	"fmt"
	"math/big"

	"golang.org/x/exp/slices"
)

// A Z is an arbitrary-precision integer extended with −∞ and +∞. The
// analysis identifies the two infinities with the saturation sentinels
// MIN and MAX of the normalized bit-width; see bounds.
type Z struct {
	infinity int8
	integer  *big.Int
}

// NInfinity is −∞.
var NInfinity = Z{infinity: -1}

// PInfinity is +∞.
var PInfinity = Z{infinity: 1}

// NewZ returns the finite Z with value n.
func NewZ(n int64) Z {
	return NewBigZ(big.NewInt(n))
}

// NewBigZ returns the finite Z with value n. The argument is not copied.
func NewBigZ(n *big.Int) Z {
	return Z{integer: n}
}

func (z1 Z) Infinite() bool { return z1.infinity != 0 }

func (z1 Z) Sign() int {
	if z1.infinity != 0 {
		return int(z1.infinity)
	}
	return z1.integer.Sign()
}

func (z1 Z) String() string {
	if z1 == NInfinity {
		return "-inf"
	}
	if z1 == PInfinity {
		return "+inf"
	}
	return z1.integer.String()
}

func (z1 Z) Cmp(z2 Z) int {
	if z1.infinity == z2.infinity && z1.infinity != 0 {
		return 0
	}
	if z1 == PInfinity {
		return 1
	}
	if z1 == NInfinity {
		return -1
	}
	if z2 == NInfinity {
		return 1
	}
	if z2 == PInfinity {
		return -1
	}
	return z1.integer.Cmp(z2.integer)
}

// Eq reports whether z1 and z2 denote the same extended integer.
func (z1 Z) Eq(z2 Z) bool {
	if z1.Infinite() || z2.Infinite() {
		return z1.infinity == z2.infinity
	}
	return z1.integer.Cmp(z2.integer) == 0
}

func (z1 Z) Add(z2 Z) Z {
	if z2.Sign() == -1 {
		return z1.Sub(z2.Negate())
	}
	if z1 == NInfinity {
		return NInfinity
	}
	if z1 == PInfinity {
		return PInfinity
	}
	if z2 == PInfinity {
		return PInfinity
	}
	n := &big.Int{}
	n.Add(z1.integer, z2.integer)
	return NewBigZ(n)
}

func (z1 Z) Sub(z2 Z) Z {
	if z2.Sign() == -1 {
		return z1.Add(z2.Negate())
	}
	if !z1.Infinite() && !z2.Infinite() {
		n := &big.Int{}
		n.Sub(z1.integer, z2.integer)
		return NewBigZ(n)
	}
	if z1 != PInfinity && z2 == PInfinity {
		return NInfinity
	}
	if z1.Infinite() && !z2.Infinite() {
		return Z{infinity: z1.infinity}
	}
	if z1 == PInfinity && z2 == PInfinity {
		return PInfinity
	}
	panic(fmt.Sprintf("%s - %s is not defined", z1, z2))
}

func (z1 Z) Mul(z2 Z) Z {
	if (z1.integer != nil && z1.integer.Sign() == 0) ||
		(z2.integer != nil && z2.integer.Sign() == 0) {
		return NewBigZ(&big.Int{})
	}

	if z1.infinity != 0 || z2.infinity != 0 {
		return Z{infinity: int8(z1.Sign() * z2.Sign())}
	}

	n := &big.Int{}
	n.Mul(z1.integer, z2.integer)
	return NewBigZ(n)
}

// Quo returns the quotient z1/z2 truncated towards zero. The divisor must
// not be zero; intervals containing a zero divisor are mapped to the full
// range before division ever happens.
func (z1 Z) Quo(z2 Z) Z {
	if z2.integer != nil && z2.integer.Sign() == 0 {
		panic("division by zero")
	}
	if !z1.Infinite() && z2.Infinite() {
		return NewBigZ(&big.Int{})
	}
	if z1.Infinite() {
		return Z{infinity: int8(z1.Sign() * z2.Sign())}
	}
	n := &big.Int{}
	n.Quo(z1.integer, z2.integer)
	return NewBigZ(n)
}

// Rsh shifts z1 right by n bits; for negative values this is an
// arithmetic shift.
func (z1 Z) Rsh(n uint) Z {
	if z1.Infinite() {
		return z1
	}
	// big.Int.Rsh is a floor division by 2**n, which matches an
	// arithmetic shift for negative operands.
	r := &big.Int{}
	r.Rsh(z1.integer, n)
	return NewBigZ(r)
}

func (z1 Z) Negate() Z {
	if z1.infinity == 1 {
		return NInfinity
	}
	if z1.infinity == -1 {
		return PInfinity
	}
	n := &big.Int{}
	n.Neg(z1.integer)
	return NewBigZ(n)
}

// Dec returns z1 − 1; infinities are unchanged.
func (z1 Z) Dec() Z {
	if z1.Infinite() {
		return z1
	}
	return z1.Sub(NewZ(1))
}

// Inc returns z1 + 1; infinities are unchanged.
func (z1 Z) Inc() Z {
	if z1.Infinite() {
		return z1
	}
	return z1.Add(NewZ(1))
}

func MaxZ(zs ...Z) Z {
	if len(zs) == 0 {
		panic("MaxZ called with no arguments")
	}
	ret := zs[0]
	for _, z := range zs[1:] {
		if z.Cmp(ret) == 1 {
			ret = z
		}
	}
	return ret
}

func sortZs(zs []Z) {
	slices.SortFunc(zs, func(a, b Z) bool { return a.Cmp(b) == -1 })
}

func MinZ(zs ...Z) Z {
	if len(zs) == 0 {
		panic("MinZ called with no arguments")
	}
	ret := zs[0]
	for _, z := range zs[1:] {
		if z.Cmp(ret) == -1 {
			ret = z
		}
	}
	return ret
}
