package vrp

import (
	"testing"

	"honnef.co/go/vrp/ir"
)

const branchSrc = `
func branch(i i32) {
entry:
  c = slt i, 10
  br c, then, else
then:
  a = add i, 1
  ret a
else:
  b = sub i, 1
  ret b
}
`

func buildOnly(t *testing.T, src string) (*Graph, *ir.Function) {
	t.Helper()
	fn, err := ir.ParseFunction(src)
	if err != nil {
		t.Fatal(err)
	}
	g := NewGraph(Config{}, nil)
	g.BuildGraph(fn)
	return g, fn
}

func findSigma(fn *ir.Function, name string) *ir.Sigma {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if s, ok := instr.(*ir.Sigma); ok && s.Name() == name {
				return s
			}
		}
	}
	return nil
}

func TestLiftPlacesSigmas(t *testing.T) {
	g, fn := buildOnly(t, branchSrc)

	st := findSigma(fn, "i.then")
	se := findSigma(fn, "i.else")
	if st == nil || se == nil {
		t.Fatalf("missing sigmas after lifting:\n%s", fn)
	}
	if st.Block().String() != "then" || se.Block().String() != "else" {
		t.Errorf("sigmas in wrong blocks: %s in %s, %s in %s", st.Name(), st.Block(), se.Name(), se.Block())
	}
	if st.X.Name() != "i" || se.X.Name() != "i" {
		t.Errorf("sigmas do not read i: %s, %s", st, se)
	}

	// Sigmas carry the derived intersections.
	if got := g.sigmaItvs[st].String(); got != "[-inf, 9]" {
		t.Errorf("true-side intersection = %s, want [-inf, 9]", got)
	}
	if got := g.sigmaItvs[se].String(); got != "[10, +inf]" {
		t.Errorf("false-side intersection = %s, want [10, +inf]", got)
	}

	// The branch is recorded for the compared value.
	var i ir.Value
	for _, p := range fn.Params {
		i = p
	}
	ms := g.BranchMaps(i)
	if len(ms) != 1 {
		t.Fatalf("got %d branch records for i, want 1", len(ms))
	}
	if ms[0].BBTrue.String() != "then" || ms[0].BBFalse.String() != "else" {
		t.Errorf("branch record sides = %s/%s", ms[0].BBTrue, ms[0].BBFalse)
	}
	if got := ms[0].ItvTrue.String(); got != "[-inf, 9]" {
		t.Errorf("recorded true-side interval = %s", got)
	}
}

func TestLiftRenamesDominatedUses(t *testing.T) {
	_, fn := buildOnly(t, branchSrc)

	var add, sub *ir.BinOp
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if bo, ok := instr.(*ir.BinOp); ok {
				switch bo.Op {
				case ir.Add:
					add = bo
				case ir.Sub:
					sub = bo
				}
			}
		}
	}
	if add.X.Name() != "i.then" {
		t.Errorf("use in true branch reads %s, want i.then", add.X.Name())
	}
	if sub.X.Name() != "i.else" {
		t.Errorf("use in false branch reads %s, want i.else", sub.X.Name())
	}
}

func TestLiftIdempotent(t *testing.T) {
	fn, err := ir.ParseFunction(branchSrc)
	if err != nil {
		t.Fatal(err)
	}
	g := NewGraph(Config{}, nil)
	g.BuildGraph(fn)
	n := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if _, ok := instr.(*ir.Sigma); ok {
				n++
			}
		}
	}

	g2 := NewGraph(Config{}, nil)
	g2.BuildGraph(fn)
	n2 := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if _, ok := instr.(*ir.Sigma); ok {
				n2++
			}
		}
	}
	if n != n2 {
		t.Errorf("second lift changed sigma count: %d != %d", n, n2)
	}
}

func TestLiftSymbolicBound(t *testing.T) {
	g, fn := buildOnly(t, `
func cmpvars(a i32, b i32) {
entry:
  c = slt a, b
  br c, lt, ge
lt:
  x = add a, 0
  ret x
ge:
  ret
}
`)
	sa := findSigma(fn, "a.lt")
	if sa == nil {
		t.Fatalf("missing sigma for a:\n%s", fn)
	}
	symb, ok := g.sigmaItvs[sa].(*SymbolicIntersection)
	if !ok {
		t.Fatalf("intersection of %s is %T, want symbolic", sa, g.sigmaItvs[sa])
	}
	if symb.Op != ir.SLT || symb.Bound.Name() != "b" {
		t.Errorf("symbolic intersection = %s %s, want slt b", symb.Op, symb.Bound.Name())
	}

	// The flipped predicate applies to the other operand.
	sb := findSigma(fn, "b.lt")
	if sb == nil {
		t.Fatalf("missing sigma for b:\n%s", fn)
	}
	symb, ok = g.sigmaItvs[sb].(*SymbolicIntersection)
	if !ok {
		t.Fatalf("intersection of %s is %T, want symbolic", sb, g.sigmaItvs[sb])
	}
	if symb.Op != ir.SGT || symb.Bound.Name() != "a" {
		t.Errorf("symbolic intersection = %s %s, want sgt a", symb.Op, symb.Bound.Name())
	}
}

func TestLiftSkipsMultiPredSuccessor(t *testing.T) {
	// The false side of the branch is also reachable from "body", so the
	// predicate does not hold on all of its paths and no sigma may be
	// placed there.
	_, fn := buildOnly(t, `
func multi(n i32) {
entry:
  c = slt n, 10
  br c, body, join
body:
  jump join
join:
  ret
}
`)
	if s := findSigma(fn, "n.join"); s != nil {
		t.Errorf("sigma %s placed in multi-predecessor block", s.Name())
	}
	if s := findSigma(fn, "n.body"); s == nil {
		t.Errorf("missing sigma in single-predecessor true side:\n%s", fn)
	}
}
