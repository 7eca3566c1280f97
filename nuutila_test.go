package vrp

import (
	"testing"

	"honnef.co/go/vrp/ir"
)

// TestNuutilaTopologicalOrder checks the contract the solver relies on:
// iterating the worklist in reverse visits a component only after every
// component it reads from, control dependencies included.
func TestNuutilaTopologicalOrder(t *testing.T) {
	srcs := map[string]string{
		"loop": `
func loop() {
entry:
  jump head
head:
  x1 = phi i32 [entry: 0, body: x2]
  c = slt x1, 100
  br c, body, exit
body:
  x2 = add x1, 1
  jump head
exit:
  ret
}
`,
		"cmpvars": `
func cmpvars(a i32, b i32) {
entry:
  b2 = add b, 0
  c = slt a, b2
  br c, lt, ge
lt:
  x = add a, 1
  ret x
ge:
  ret
}
`,
	}
	for name, src := range srcs {
		t.Run(name, func(t *testing.T) {
			fn, err := ir.ParseFunction(src)
			if err != nil {
				t.Fatal(err)
			}
			g := NewGraph(Config{}, nil)
			g.BuildGraph(fn)

			g.addControlDependenceEdges()
			nu := newNuutila(g)
			nu.findSCCs()

			// Solve order of each variable's component.
			order := map[*VarNode]int{}
			pos := 0
			for i := len(nu.worklist) - 1; i >= 0; i-- {
				for _, v := range nu.components[nu.worklist[i]] {
					order[v] = pos
				}
				pos++
			}
			for v := range g.vars {
				if _, ok := order[g.vars[v]]; !ok {
					t.Errorf("%s not assigned to any component", v.Name())
				}
			}
			for src, ops := range g.useMap {
				for _, op := range ops {
					if order[src] > order[op.Sink()] {
						t.Errorf("%s (component %d) is read by %s (component %d) but solved later",
							src.v.Name(), order[src], op.Sink().v.Name(), order[op.Sink()])
					}
				}
			}
			g.delControlDependenceEdges()
		})
	}
}

// TestNuutilaLoopComponent checks that the φ-cycle of a loop ends up in
// one component together with the sigma in the loop body, while the
// sigma on the exit edge stays outside it.
func TestNuutilaLoopComponent(t *testing.T) {
	fn, err := ir.ParseFunction(`
func loop() {
entry:
  jump head
head:
  x1 = phi i32 [entry: 0, body: x2]
  c = slt x1, 100
  br c, body, exit
body:
  x2 = add x1, 1
  jump head
exit:
  ret
}
`)
	if err != nil {
		t.Fatal(err)
	}
	g := NewGraph(Config{}, nil)
	g.BuildGraph(fn)
	nu := newNuutila(g)
	nu.findSCCs()

	rep := map[*VarNode]*VarNode{}
	for r, comp := range nu.components {
		for _, v := range comp {
			rep[v] = r
		}
	}
	x1 := g.names["x1"]
	x2 := g.names["x2"]
	sigma := g.names["x1.body"]
	if rep[x1] != rep[x2] || rep[x1] != rep[sigma] {
		t.Errorf("x1, x2 and x1.body not in one component: %v, %v, %v", rep[x1], rep[x2], rep[sigma])
	}
	exit := g.names["x1.exit"]
	if rep[exit] == rep[x1] {
		t.Errorf("x1.exit must not join the loop component")
	}
}
