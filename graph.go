// Package vrp implements range analysis for integer variables of
// programs in SSA form.
//
// The analysis follows the algorithm described in "Speed And Precision in
// Range Analysis" by Campos et al.: the live ranges of variables are split
// at conditional branches (e-SSA), a constraint graph is built over the
// variables, and a widening/narrowing fixed point is computed per strongly
// connected component, with symbolic intervals resolved between the two
// phases. Further resources discussing this algorithm are:
//   - Scalable and precise range analysis on the interval lattice by Rodrigues
//   - A Fast and Low Overhead Technique to Secure Programs Against Integer
//     Overflows by Rodrigues et al
//   - https://github.com/vhscampos/range-analysis
//
// The result maps every integer SSA name to a conservative interval: every
// concrete execution assigns the name a value inside its interval. The
// analysis over-approximates; it proves soundness, not precision.
package vrp

import (
	"fmt"
	"strings"

	"honnef.co/go/vrp/ir"
)

// A VarNode represents exactly one SSA name and the interval currently
// associated with it. VarNodes are created during graph construction and
// mutated only by the solver.
type VarNode struct {
	v     ir.Value
	rng   Range
	width int
}

// Value returns the SSA value this node represents.
func (n *VarNode) Value() ir.Value { return n.v }

// Range returns the node's current interval. After FindIntervals it is
// the final result for this name.
func (n *VarNode) Range() Range { return n.rng }

// Width returns the bit-width of the value before width normalization.
func (n *VarNode) Width() int { return n.width }

func (n *VarNode) String() string {
	return fmt.Sprintf("%s: %s", n.v.Name(), n.rng)
}

// An Intersection constrains the result of an operation. It is either a
// concrete interval or a symbolic one, bounded by another SSA name.
type Intersection interface {
	Range() Range
	String() string
}

// A BasicIntersection is a concrete interval.
type BasicIntersection struct {
	I Range
}

func (isec *BasicIntersection) Range() Range   { return isec.I }
func (isec *BasicIntersection) String() string { return isec.I.String() }

// A SymbolicIntersection is an interval bounded by a comparison against
// another variable. For 'if a < b', in the true branch 'a' is bounded by
// [−∞, ub(b)−1]. I holds the current concrete approximation, which is the
// full range until the solver resolves the bound.
type SymbolicIntersection struct {
	Op    ir.Op
	Bound ir.Value
	I     Range
}

func (isec *SymbolicIntersection) Range() Range { return isec.I }

func (isec *SymbolicIntersection) String() string {
	l := "-inf"
	u := "+inf"
	name := isec.Bound.Name()
	switch isec.Op {
	case ir.SLT:
		u = name + "-1"
	case ir.SLE:
		u = name
	case ir.SGT:
		l = name + "+1"
	case ir.SGE:
		l = name
	case ir.ULT:
		l = "0"
		u = name + "-1"
	case ir.ULE:
		l = "0"
		u = name
	case ir.EQ:
		l = name
		u = name
	}
	return fmt.Sprintf("[%s, %s]", l, u)
}

// A ValueBranchMap records, for one branch on a comparison, the intervals
// implied for one of the compared values on either side.
type ValueBranchMap struct {
	V                 ir.Value
	BBTrue, BBFalse   *ir.BasicBlock
	ItvTrue, ItvFalse Intersection
}

// unaryOpcode is the opcode of a unaryOp. Sigma nodes are identities;
// everything else changes width.
type unaryOpcode int

const (
	opIdent unaryOpcode = iota
	opTrunc
	opSExt
	opZExt
)

func (op unaryOpcode) String() string {
	switch op {
	case opIdent:
		return "sigma"
	case opTrunc:
		return "trunc"
	case opSExt:
		return "sext"
	case opZExt:
		return "zext"
	}
	return "?"
}

// An operation is a hyperedge of the constraint graph: it reads its
// source VarNodes and constrains its sink.
type operation interface {
	Sink() *VarNode
	Intersect() Intersection
	setIntersect(Intersection)
	Sources() []*VarNode
	// Eval computes the interval of the sink from the intervals of the
	// sources, without applying the intersection.
	Eval(g *Graph) Range
	String() string
}

type baseOp struct {
	sink  *VarNode
	isect Intersection
}

func (op *baseOp) Sink() *VarNode               { return op.sink }
func (op *baseOp) Intersect() Intersection      { return op.isect }
func (op *baseOp) setIntersect(is Intersection) { op.isect = is }

// A unaryOp is sink = opcode(source) ∩ isect.
type unaryOp struct {
	baseOp
	source *VarNode
	op     unaryOpcode
	bits   int // destination width for conversions
}

func (op *unaryOp) Sources() []*VarNode { return []*VarNode{op.source} }

func (op *unaryOp) Eval(g *Graph) Range {
	switch op.op {
	case opIdent:
		return op.source.rng
	case opTrunc:
		return g.bs.truncate(op.source.rng, op.bits)
	case opSExt:
		return g.bs.sextOrTrunc(op.source.rng, op.bits)
	case opZExt:
		return g.bs.zextOrTrunc(op.source.rng, op.bits)
	default:
		return FullRange
	}
}

func (op *unaryOp) String() string {
	return fmt.Sprintf("%s = %s(%s) ∩ %s", op.sink.v.Name(), op.op, op.source.v.Name(), op.isect)
}

// A binaryOp is sink = source1 opcode source2 ∩ isect.
type binaryOp struct {
	baseOp
	x, y *VarNode
	op   ir.Op
}

func (op *binaryOp) Sources() []*VarNode { return []*VarNode{op.x, op.y} }

func (op *binaryOp) Eval(g *Graph) Range {
	a, b := op.x.rng, op.y.rng
	switch op.op {
	case ir.Add:
		return g.bs.add(a, b)
	case ir.Sub:
		return g.bs.sub(a, b)
	case ir.Mul:
		return g.bs.mul(a, b)
	case ir.UDiv:
		return g.bs.udiv(a, b)
	case ir.SDiv:
		return g.bs.sdiv(a, b)
	case ir.URem:
		return g.bs.urem(a, b)
	case ir.SRem:
		return g.bs.srem(a, b)
	case ir.Shl:
		return g.bs.shl(a, b)
	case ir.LShr:
		return g.bs.lshr(a, b)
	case ir.AShr:
		return g.bs.ashr(a, b)
	case ir.And:
		return g.bs.and(a, b)
	case ir.Or:
		return g.bs.or(a, b)
	case ir.Xor:
		return g.bs.xor(a, b)
	default:
		// Unknown opcodes contribute no information.
		if a.IsEmpty() || b.IsEmpty() {
			return EmptyRange
		}
		return FullRange
	}
}

func (op *binaryOp) String() string {
	return fmt.Sprintf("%s = %s %s %s", op.sink.v.Name(), op.x.v.Name(), op.op, op.y.v.Name())
}

// A phiOp is sink = φ(sources); its value is the union of the sources.
type phiOp struct {
	baseOp
	srcs []*VarNode
}

func (op *phiOp) Sources() []*VarNode { return op.srcs }

func (op *phiOp) Eval(g *Graph) Range {
	r := EmptyRange
	for _, src := range op.srcs {
		r = r.Union(src.rng)
	}
	return r
}

func (op *phiOp) String() string {
	names := make([]string, len(op.srcs))
	for i, src := range op.srcs {
		names[i] = src.v.Name()
	}
	return fmt.Sprintf("%s = φ(%s)", op.sink.v.Name(), strings.Join(names, ", "))
}

// A controlDep is a zero-effect edge from a symbolic bound to the sink of
// the sigma using it. It exists only while SCCs are discovered, to force
// the bound's component to be solved first, and is removed before solving.
type controlDep struct {
	baseOp
	source *VarNode
}

func (op *controlDep) Sources() []*VarNode { return []*VarNode{op.source} }

func (op *controlDep) Eval(g *Graph) Range { return op.source.rng }

func (op *controlDep) String() string {
	return fmt.Sprintf("%s = dep(%s)", op.sink.v.Name(), op.source.v.Name())
}

// VarNodes maps SSA values to their nodes. A caller may allocate one map
// and pass it to several graphs to compose analyses inter-procedurally;
// serializing access is the caller's responsibility.
type VarNodes map[ir.Value]*VarNode

// Config controls optional behavior of the analysis.
type Config struct {
	// JumpSetWidening widens unstable endpoints to the nearest constant
	// appearing in the function instead of straight to ±∞.
	JumpSetWidening bool
}

// A Graph is the constraint graph of one or more functions. It owns its
// VarNodes, operations and intersections; none of them outlive the graph.
type Graph struct {
	cfg  Config
	vars VarNodes
	oprs []operation

	// useMap maps a variable to the operations reading it.
	useMap map[*VarNode][]operation
	// symbMap maps a variable to the operations whose intersection is
	// bounded by it.
	symbMap map[*VarNode][]operation
	// defMap maps a variable to its single defining operation.
	defMap map[*VarNode]operation
	// valuesBranchMap records the intervals derived from every branch.
	valuesBranchMap map[ir.Value][]*ValueBranchMap

	sigmaItvs map[*ir.Sigma]Intersection
	names     map[string]*VarNode
	bs        *bounds
	consts    []Z // sorted, for jump-set widening

	ctrlDeps []*controlDep
}

// NewGraph returns an empty constraint graph. vars may be a shared,
// caller-allocated VarNodes map; pass nil for a private one.
func NewGraph(cfg Config, vars VarNodes) *Graph {
	if vars == nil {
		vars = VarNodes{}
	}
	return &Graph{
		cfg:             cfg,
		vars:            vars,
		useMap:          map[*VarNode][]operation{},
		symbMap:         map[*VarNode][]operation{},
		defMap:          map[*VarNode]operation{},
		valuesBranchMap: map[ir.Value][]*ValueBranchMap{},
		sigmaItvs:       map[*ir.Sigma]Intersection{},
		names:           map[string]*VarNode{},
	}
}

// Analyze lifts fn into e-SSA, builds its constraint graph and solves it.
// The function is mutated by the lifting.
func Analyze(fn *ir.Function, cfg Config) *Graph {
	g := NewGraph(cfg, nil)
	g.BuildGraph(fn)
	g.FindIntervals()
	return g
}

// Range returns the interval of v.
func (g *Graph) Range(v ir.Value) Range {
	if n, ok := g.vars[v]; ok {
		return n.rng
	}
	return FullRange
}

// RangeByName returns the interval of the SSA name. Names include those
// of the sigma values introduced by lifting.
func (g *Graph) RangeByName(name string) Range {
	if n, ok := g.names[name]; ok {
		return n.rng
	}
	return FullRange
}

// Vars returns the graph's VarNodes map.
func (g *Graph) Vars() VarNodes { return g.vars }

// BranchMaps returns the branch records for v, one per branch whose
// condition compares v.
func (g *Graph) BranchMaps(v ir.Value) []*ValueBranchMap {
	return g.valuesBranchMap[v]
}

// Clear releases all graph state.
func (g *Graph) Clear() {
	g.vars = VarNodes{}
	g.oprs = nil
	g.useMap = map[*VarNode][]operation{}
	g.symbMap = map[*VarNode][]operation{}
	g.defMap = map[*VarNode]operation{}
	g.valuesBranchMap = map[ir.Value][]*ValueBranchMap{}
	g.sigmaItvs = map[*ir.Sigma]Intersection{}
	g.names = map[string]*VarNode{}
	g.consts = nil
	g.ctrlDeps = nil
	g.bs = nil
}

func intType(v ir.Value) (ir.Int, bool) {
	t, ok := v.Type().(ir.Int)
	return t, ok
}

// maxBits returns the maximum integer width appearing in fn. All values
// of the analysis are extended to maxBits+1 signed bits so that binary
// operations never need width reconciliation.
func maxBits(fn *ir.Function) int {
	max := 1
	consider := func(v ir.Value) {
		if t, ok := intType(v); ok && t.Bits > max {
			max = t.Bits
		}
	}
	for _, v := range fn.Values() {
		consider(v)
	}
	var rands []*ir.Value
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			rands = instr.Operands(rands[:0])
			for _, rand := range rands {
				consider(*rand)
			}
		}
	}
	return max
}

// addVarNode returns the node for v, creating it if needed. Constants get
// a singleton range; everything else starts out unknown.
func (g *Graph) addVarNode(v ir.Value) *VarNode {
	if n, ok := g.vars[v]; ok {
		return n
	}
	width := 1
	if t, ok := intType(v); ok {
		width = t.Bits
	}
	n := &VarNode{v: v, rng: FullRange, width: width}
	if c, ok := v.(*ir.Const); ok {
		z := NewBigZ(c.Value)
		n.rng = g.bs.rng(z, z)
	}
	g.vars[v] = n
	g.names[v.Name()] = n
	return n
}

func (g *Graph) addUse(src *VarNode, op operation) {
	g.useMap[src] = append(g.useMap[src], op)
}

func (g *Graph) addOp(op operation) {
	g.oprs = append(g.oprs, op)
	g.defMap[op.Sink()] = op
	for _, src := range op.Sources() {
		g.addUse(src, op)
	}
}

// BuildGraph normalizes widths, lifts fn into e-SSA and materializes the
// constraint graph for its instruction stream.
func (g *Graph) BuildGraph(fn *ir.Function) {
	if g.bs == nil {
		g.bs = newBounds(maxBits(fn))
	}
	fn.BuildDomTree()
	g.liftSigmas(fn)

	for _, p := range fn.Params {
		if _, ok := intType(p); ok {
			g.addVarNode(p)
		}
	}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			g.buildOperation(instr)
		}
	}

	g.collectConsts()
}

// buildOperation creates the operation node for one instruction.
// Non-integer instructions and conversions with an unknown opcode create
// no operation; comparisons still give their integer operands VarNodes so
// that every compared name has a range. A binary instruction with an
// opcode the algebra does not handle gets an operation yielding the full
// range.
func (g *Graph) buildOperation(instr ir.Instruction) {
	switch instr := instr.(type) {
	case *ir.BinOp:
		if instr.Op.IsComparison() {
			// Comparisons yield booleans; their integer operands become
			// graph inputs via the sigmas derived from the branch.
			for _, v := range []ir.Value{instr.X, instr.Y} {
				if _, ok := intType(v); ok {
					g.addVarNode(v)
				}
			}
			return
		}
		if _, ok := intType(instr); !ok {
			return
		}
		op := &binaryOp{
			baseOp: baseOp{sink: g.addVarNode(instr), isect: &BasicIntersection{I: FullRange}},
			x:      g.addVarNode(instr.X),
			y:      g.addVarNode(instr.Y),
			op:     instr.Op,
		}
		g.addOp(op)
	case *ir.Phi:
		if _, ok := intType(instr); !ok {
			return
		}
		op := &phiOp{
			baseOp: baseOp{sink: g.addVarNode(instr), isect: &BasicIntersection{I: FullRange}},
		}
		for _, e := range instr.Edges {
			op.srcs = append(op.srcs, g.addVarNode(e))
		}
		g.addOp(op)
	case *ir.Sigma:
		if _, ok := intType(instr); !ok {
			return
		}
		isect := g.sigmaItvs[instr]
		if isect == nil {
			isect = &BasicIntersection{I: FullRange}
		}
		op := &unaryOp{
			baseOp: baseOp{sink: g.addVarNode(instr), isect: isect},
			source: g.addVarNode(instr.X),
			op:     opIdent,
		}
		g.addOp(op)
		if symb, ok := isect.(*SymbolicIntersection); ok {
			bound := g.addVarNode(symb.Bound)
			g.symbMap[bound] = append(g.symbMap[bound], op)
		}
	case *ir.Convert:
		t, ok := intType(instr)
		if !ok {
			return
		}
		var opc unaryOpcode
		switch instr.Op {
		case ir.Trunc:
			opc = opTrunc
		case ir.SExt:
			opc = opSExt
		case ir.ZExt:
			opc = opZExt
		default:
			return
		}
		op := &unaryOp{
			baseOp: baseOp{sink: g.addVarNode(instr), isect: &BasicIntersection{I: FullRange}},
			source: g.addVarNode(instr.X),
			op:     opc,
			bits:   t.Bits,
		}
		g.addOp(op)
	case *ir.Ret:
		if instr.X != nil {
			if _, ok := intType(instr.X); ok {
				g.addVarNode(instr.X)
			}
		}
	}
}

// collectConsts gathers the constants of the graph in sorted order; they
// are the jump set of jump-set widening.
func (g *Graph) collectConsts() {
	seen := map[string]bool{}
	add := func(z Z) {
		if z.Infinite() {
			return
		}
		s := z.String()
		if !seen[s] {
			seen[s] = true
			g.consts = append(g.consts, z)
		}
	}
	for v, n := range g.vars {
		if _, ok := v.(*ir.Const); ok {
			add(n.rng.Lower())
			add(n.rng.Upper())
		}
	}
	for _, isect := range g.sigmaItvs {
		if basic, ok := isect.(*BasicIntersection); ok && !basic.I.IsEmpty() {
			add(basic.I.Lower())
			add(basic.I.Upper())
		}
	}
	sortZs(g.consts)
}
