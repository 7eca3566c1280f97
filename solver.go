package vrp

// This file implements the fixed-point solver. Components are processed
// in topological order of the condensation; inside each component a
// widening pass accelerates to a post-fixpoint, symbolic intersections
// are resolved against their now-stable bounds, and a narrowing pass
// tightens the endpoints that widening threw to ±∞.

// FindIntervals solves the constraint graph. Afterwards every VarNode
// holds its final interval.
func (g *Graph) FindIntervals() {
	g.addControlDependenceEdges()
	nu := newNuutila(g)
	nu.findSCCs()
	g.delControlDependenceEdges()

	for i := len(nu.worklist) - 1; i >= 0; i-- {
		g.solveComponent(nu.components[nu.worklist[i]])
	}
}

// solveComponent runs the three phases on one SCC. Variables without a
// defining operation (parameters, constants) keep their initial ranges;
// they are the graph's inputs.
func (g *Graph) solveComponent(comp []*VarNode) {
	inComp := make(map[*VarNode]bool, len(comp))
	for _, v := range comp {
		inComp[v] = true
	}
	var ops []operation
	for _, v := range comp {
		if op, ok := g.defMap[v]; ok {
			v.rng = EmptyRange
			ops = append(ops, op)
		}
	}
	if len(ops) == 0 {
		return
	}

	g.update(ops, inComp, g.widen)
	g.fixIntersects(ops)
	g.update(ops, inComp, g.narrow)
}

// update runs meet to saturation over the component's operations,
// re-pushing the users of every sink that changed.
func (g *Graph) update(seed []operation, inComp map[*VarNode]bool, meet func(operation) bool) {
	active := make([]operation, len(seed))
	copy(active, seed)
	for len(active) > 0 {
		op := active[len(active)-1]
		active = active[:len(active)-1]
		if !meet(op) {
			continue
		}
		for _, use := range g.useMap[op.Sink()] {
			if inComp[use.Sink()] {
				active = append(active, use)
			}
		}
	}
}

// eval computes the operation's result constrained by its intersection.
func (g *Graph) eval(op operation) Range {
	return op.Eval(g).Intersect(op.Intersect().Range())
}

// widen jumps an endpoint that moved since the last visit to ±∞, or,
// with jump-set widening, to the nearest constant of the function in that
// direction. With plain widening each endpoint can move at most twice;
// jump-set widening adds at most one move per constant of the jump set.
// Either way the number of widening steps is bounded.
func (g *Graph) widen(op operation) bool {
	sink := op.Sink()
	oi := sink.rng
	ni := g.eval(op)
	if ni.IsEmpty() {
		return false
	}
	if oi.IsEmpty() {
		sink.rng = ni
		return true
	}

	lower, upper := oi.lower, oi.upper
	if ni.lower.Cmp(oi.lower) == -1 {
		lower = g.jumpDown(ni.lower)
	}
	if ni.upper.Cmp(oi.upper) == 1 {
		upper = g.jumpUp(ni.upper)
	}
	if lower.Eq(oi.lower) && upper.Eq(oi.upper) {
		return false
	}
	sink.rng = NewRange(lower, upper)
	return true
}

// jumpDown returns the widening target for a falling lower bound.
func (g *Graph) jumpDown(z Z) Z {
	if !g.cfg.JumpSetWidening {
		return NInfinity
	}
	// Largest constant at or below z; −∞ if there is none.
	for i := len(g.consts) - 1; i >= 0; i-- {
		if g.consts[i].Cmp(z) <= 0 {
			return g.consts[i]
		}
	}
	return NInfinity
}

// jumpUp returns the widening target for a rising upper bound.
func (g *Graph) jumpUp(z Z) Z {
	if !g.cfg.JumpSetWidening {
		return PInfinity
	}
	for _, c := range g.consts {
		if c.Cmp(z) >= 0 {
			return c
		}
	}
	return PInfinity
}

// fixIntersects resolves the symbolic intersections of the component's
// operations against the current range of their bounds, replacing them
// with concrete intersections.
func (g *Graph) fixIntersects(ops []operation) {
	for _, op := range ops {
		symb, ok := op.Intersect().(*SymbolicIntersection)
		if !ok {
			continue
		}
		bound, ok := g.vars[symb.Bound]
		if !ok {
			// The bound never made it into the graph; nothing is known
			// about it.
			op.setIntersect(&BasicIntersection{I: FullRange})
			continue
		}
		op.setIntersect(&BasicIntersection{I: predicateRange(g.bs, symb.Op, bound.rng)})
	}
}

// narrow tightens endpoints that widening left at ±∞ back to the finite
// values the constraints justify. Finite endpoints may only relax
// outwards, which keeps the result an over-approximation; the pass
// terminates because every endpoint moves monotonically within the
// saturated lattice.
func (g *Graph) narrow(op operation) bool {
	sink := op.Sink()
	oi := sink.rng
	ni := g.eval(op)
	if oi.IsEmpty() {
		if ni.IsEmpty() {
			return false
		}
		sink.rng = ni
		return true
	}
	if ni.IsEmpty() {
		sink.rng = EmptyRange
		return true
	}

	lower, upper := oi.lower, oi.upper
	if lower == NInfinity && ni.lower != NInfinity {
		lower = ni.lower
	} else {
		lower = MinZ(lower, ni.lower)
	}
	if upper == PInfinity && ni.upper != PInfinity {
		upper = ni.upper
	} else {
		upper = MaxZ(upper, ni.upper)
	}
	if lower.Eq(oi.lower) && upper.Eq(oi.upper) {
		return false
	}
	sink.rng = NewRange(lower, upper)
	return true
}
