package vrp

import (
	"math/big"

	"honnef.co/go/vrp/ir"
)

// This file lifts functions into e-SSA form: at every branch on an
// integer comparison, a sigma node is inserted on each side for every
// non-constant operand of the comparison, and all uses dominated by that
// side are renamed to the sigma. Each sigma carries the interval implied
// by the branch predicate, concrete when the other comparand is a
// constant and symbolic when it is another SSA name.

// liftSigmas performs e-SSA lifting of fn, filling in g.sigmaItvs and
// g.valuesBranchMap. Lifting is idempotent: branches that already have
// their sigmas are left alone.
func (g *Graph) liftSigmas(fn *ir.Function) {
	for _, b := range fn.Blocks {
		branch, ok := b.Terminator().(*ir.If)
		if !ok {
			continue
		}
		cond, ok := branch.Cond.(*ir.BinOp)
		if !ok || !cond.Op.IsComparison() {
			continue
		}
		if _, ok := intType(cond.X); !ok {
			continue
		}
		trueBB, falseBB := b.Succs[0], b.Succs[1]

		for _, x := range [2]ir.Value{cond.X, cond.Y} {
			if _, ok := x.(*ir.Const); ok {
				continue
			}
			if x == cond.X && x == cond.Y {
				// Comparing a variable with itself constrains nothing.
				continue
			}
			// Orient the predicate so that it reads x OP other.
			op := cond.Op
			other := cond.Y
			if x == cond.Y {
				op = cond.Op.Flip()
				other = cond.X
			}

			m := &ValueBranchMap{
				V:        x,
				BBTrue:   trueBB,
				BBFalse:  falseBB,
				ItvTrue:  deriveItv(g.bs, op, other),
				ItvFalse: deriveItv(g.bs, op.Negate(), other),
			}
			g.valuesBranchMap[x] = append(g.valuesBranchMap[x], m)

			g.placeSigma(fn, x, b, trueBB, m.ItvTrue)
			g.placeSigma(fn, x, b, falseBB, m.ItvFalse)
		}
	}
}

// placeSigma inserts x_s := sigma(x) at the head of succ and renames all
// uses of x dominated by succ. Successors reachable through more than one
// edge get no sigma; the predicate would not hold on the other paths.
func (g *Graph) placeSigma(fn *ir.Function, x ir.Value, from, succ *ir.BasicBlock, isect Intersection) {
	if len(succ.Preds) != 1 {
		return
	}
	for _, instr := range succ.Instrs {
		if s, ok := instr.(*ir.Sigma); ok && s.X == x && s.From == from {
			// Already lifted, e.g. by an earlier analysis of the same
			// function; only the intersection needs recording.
			g.sigmaItvs[s] = isect
			return
		}
	}

	s := succ.NewSigma(x.Name()+"."+succ.String(), x, from)
	g.sigmaItvs[s] = isect

	var rands []*ir.Value
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if instr == ir.Instruction(s) {
				// The sigma's own use of x stays.
				continue
			}
			if phi, ok := instr.(*ir.Phi); ok {
				// A φ-use happens on the incoming edge, in the
				// predecessor.
				for i := range phi.Edges {
					if phi.Edges[i] == x && succ.Dominates(phi.Block().Preds[i]) {
						phi.Edges[i] = s
					}
				}
				continue
			}
			rands = instr.Operands(rands[:0])
			for _, rand := range rands {
				if *rand == x && succ.Dominates(b) {
					*rand = s
				}
			}
		}
	}
}

// deriveItv derives the intersection implied by "x pred other" holding.
// When other is a constant the result is concrete; otherwise it is
// symbolic with other as the bound.
func deriveItv(bs *bounds, pred ir.Op, other ir.Value) Intersection {
	if c, ok := other.(*ir.Const); ok {
		k := NewBigZ(new(big.Int).Set(c.Value))
		return &BasicIntersection{I: predicateRange(bs, pred, NewRange(k, k))}
	}
	return &SymbolicIntersection{Op: pred, Bound: other, I: FullRange}
}

// predicateRange turns "x pred b" with b ∈ bound into the widest interval
// containing every satisfying x. NE constrains nothing. Unsigned
// predicates are interpreted over the signed lattice: only upper bounds
// against a known non-negative comparand carry information, everything
// else admits values with the sign bit set and yields the full range.
func predicateRange(bs *bounds, pred ir.Op, bound Range) Range {
	if bound.IsEmpty() {
		return EmptyRange
	}
	bl, bu := bound.Lower(), bound.Upper()
	switch pred {
	case ir.SLT:
		return bs.rng(NInfinity, bu.Dec())
	case ir.SLE:
		return bs.rng(NInfinity, bu)
	case ir.SGT:
		return bs.rng(bl.Inc(), PInfinity)
	case ir.SGE:
		return bs.rng(bl, PInfinity)
	case ir.EQ:
		return bs.rng(bl, bu)
	case ir.NE:
		return FullRange
	case ir.ULT:
		if bl.Sign() < 0 {
			// A negative bound is a huge unsigned value; satisfying x may
			// have its sign bit set, so the signed lattice learns nothing.
			return FullRange
		}
		return bs.rng(NewZ(0), bu.Dec())
	case ir.ULE:
		if bl.Sign() < 0 {
			return FullRange
		}
		return bs.rng(NewZ(0), bu)
	case ir.UGT, ir.UGE:
		// x above an unsigned bound includes every value with the sign
		// bit set; the interval hull over the signed domain is the full
		// range.
		return FullRange
	default:
		return FullRange
	}
}
