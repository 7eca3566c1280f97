package vrp

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// This file discovers the strongly connected components of the constraint
// graph using Nuutila and Soisalon-Soininen's variant of Tarjan's
// algorithm. The variant emits component representatives in a worklist
// whose reverse is a topological order of the condensation, which is
// exactly the order the solver wants. The traversal is iterative with an
// explicit frame stack so that pathological functions cannot overflow the
// goroutine stack.

type nuutila struct {
	g     *Graph
	index int

	dfs         map[*VarNode]int
	root        map[*VarNode]*VarNode
	inComponent map[*VarNode]bool
	components  map[*VarNode][]*VarNode
	// worklist holds the component representatives in visit order; the
	// solver iterates it back to front.
	worklist []*VarNode

	stack []*VarNode
}

// addControlDependenceEdges injects a controlDep operation from each
// symbolic bound to the sink of every sigma bounded by it. They only
// exist to order the SCCs; delControlDependenceEdges removes them before
// the solver runs.
func (g *Graph) addControlDependenceEdges() {
	for bound, ops := range g.symbMap {
		for _, op := range ops {
			dep := &controlDep{
				baseOp: baseOp{sink: op.Sink(), isect: &BasicIntersection{I: FullRange}},
				source: bound,
			}
			g.ctrlDeps = append(g.ctrlDeps, dep)
			g.addUse(bound, dep)
		}
	}
}

func (g *Graph) delControlDependenceEdges() {
	for src, ops := range g.useMap {
		keep := ops[:0]
		for _, op := range ops {
			if _, ok := op.(*controlDep); !ok {
				keep = append(keep, op)
			}
		}
		g.useMap[src] = keep
	}
	g.ctrlDeps = nil
}

func newNuutila(g *Graph) *nuutila {
	return &nuutila{
		g:           g,
		dfs:         map[*VarNode]int{},
		root:        map[*VarNode]*VarNode{},
		inComponent: map[*VarNode]bool{},
		components:  map[*VarNode][]*VarNode{},
	}
}

// findSCCs numbers every variable and groups them into components. Roots
// are visited in name order to keep runs deterministic.
func (nu *nuutila) findSCCs() {
	vars := maps.Values(nu.g.vars)
	slices.SortFunc(vars, func(a, b *VarNode) bool { return a.v.Name() < b.v.Name() })
	for _, v := range vars {
		if _, ok := nu.dfs[v]; !ok {
			nu.visit(v)
		}
	}
}

// succs returns the targets of v's out-edges: the sinks of all operations
// reading v, control dependencies included.
func (nu *nuutila) succs(v *VarNode) []*VarNode {
	ops := nu.g.useMap[v]
	targets := make([]*VarNode, len(ops))
	for i, op := range ops {
		targets[i] = op.Sink()
	}
	return targets
}

type visitFrame struct {
	v     *VarNode
	succs []*VarNode
	i     int
}

func (nu *nuutila) visit(v *VarNode) {
	nu.number(v)
	frames := []visitFrame{{v: v, succs: nu.succs(v)}}
	for len(frames) > 0 {
		f := &frames[len(frames)-1]
		if f.i < len(f.succs) {
			w := f.succs[f.i]
			f.i++
			if _, ok := nu.dfs[w]; !ok {
				nu.number(w)
				frames = append(frames, visitFrame{v: w, succs: nu.succs(w)})
				continue
			}
			nu.meld(f.v, w)
			continue
		}

		// All successors of f.v are finished.
		done := f.v
		frames = frames[:len(frames)-1]
		if nu.root[done] == done {
			nu.inComponent[done] = true
			comp := []*VarNode{done}
			for len(nu.stack) > 0 && nu.dfs[nu.stack[len(nu.stack)-1]] > nu.dfs[done] {
				w := nu.stack[len(nu.stack)-1]
				nu.stack = nu.stack[:len(nu.stack)-1]
				nu.inComponent[w] = true
				comp = append(comp, w)
			}
			nu.components[done] = comp
			nu.worklist = append(nu.worklist, done)
		} else {
			nu.stack = append(nu.stack, done)
		}
		if len(frames) > 0 {
			nu.meld(frames[len(frames)-1].v, done)
		}
	}
}

func (nu *nuutila) number(v *VarNode) {
	nu.dfs[v] = nu.index
	nu.index++
	nu.root[v] = v
}

// meld pulls v's root towards w's when w's component is still open and
// was entered earlier.
func (nu *nuutila) meld(v, w *VarNode) {
	if !nu.inComponent[w] && nu.dfs[nu.root[v]] >= nu.dfs[nu.root[w]] {
		nu.root[v] = nu.root[w]
	}
}
