package ir

import (
	"fmt"
	"io"
	"strings"
)

// WriteTo writes a textual rendering of the function. The output of a
// lifted function contains σ-nodes and is not meant to be parsed back.
func (f *Function) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") {\n")
	for _, blk := range f.Blocks {
		fmt.Fprintf(&b, "%s:", blk)
		if len(blk.Preds) > 0 {
			parts := make([]string, len(blk.Preds))
			for i, pred := range blk.Preds {
				parts[i] = pred.String()
			}
			fmt.Fprintf(&b, " ; preds: %s", strings.Join(parts, ", "))
		}
		b.WriteByte('\n')
		for _, instr := range blk.Instrs {
			fmt.Fprintf(&b, "  %s\n", instr)
		}
	}
	b.WriteString("}\n")
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func (f *Function) String() string {
	var b strings.Builder
	f.WriteTo(&b)
	return b.String()
}
