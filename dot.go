package vrp

import (
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"honnef.co/go/vrp/ir"
)

// Print writes the constraint graph in Graphviz dot format: one node per
// VarNode labeled with its current range, and one edge per operation
// source, labeled with the opcode and, when it constrains anything, the
// intersection. fn only provides the graph's title.
func (g *Graph) Print(fn *ir.Function, w io.Writer) error {
	bw := &errWriter{w: w}
	fmt.Fprintf(bw, "digraph G {\n")
	if fn != nil {
		fmt.Fprintf(bw, "\tlabel=%q;\n", fn.Name)
	}

	nodes := maps.Values(g.vars)
	slices.SortFunc(nodes, func(a, b *VarNode) bool { return a.v.Name() < b.v.Name() })
	for _, n := range nodes {
		fmt.Fprintf(bw, "\t%q [label=\"%s: %s\"];\n", n.v.Name(), n.v.Name(), n.rng)
	}
	for _, op := range g.oprs {
		label := opLabel(op)
		for _, src := range op.Sources() {
			fmt.Fprintf(bw, "\t%q -> %q [label=%q];\n", src.v.Name(), op.Sink().v.Name(), label)
		}
	}
	fmt.Fprintf(bw, "}\n")
	return bw.err
}

func opLabel(op operation) string {
	var label string
	switch op := op.(type) {
	case *binaryOp:
		label = op.op.String()
	case *unaryOp:
		label = op.op.String()
	case *phiOp:
		label = "phi"
	case *controlDep:
		label = "dep"
	}
	if isect := op.Intersect(); !isect.Range().IsFull() {
		label += " ∩ " + isect.String()
	}
	return label
}

// errWriter latches the first write error so that Print does not have to
// check every Fprintf.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	ew.err = err
	return n, err
}
