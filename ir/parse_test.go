package ir

import (
	"strings"
	"testing"
)

func TestParseLoop(t *testing.T) {
	fn, err := ParseFunction(`
func loop(n i32) {
entry:
  jump head
head:
  x1 = phi i32 [entry: 0, body: x2]
  c = slt x1, n
  br c, body, exit
body:
  x2 = add x1, 1
  jump head
exit:
  ret x1
}
`)
	if err != nil {
		t.Fatal(err)
	}
	if fn.Name != "loop" {
		t.Errorf("name = %q", fn.Name)
	}
	if len(fn.Params) != 1 || fn.Params[0].Name() != "n" {
		t.Fatalf("params = %v", fn.Params)
	}
	if len(fn.Blocks) != 4 {
		t.Fatalf("got %d blocks", len(fn.Blocks))
	}

	head := fn.Blocks[1]
	if head.String() != "head" {
		t.Fatalf("second block is %s", head)
	}
	if len(head.Preds) != 2 || head.Preds[0].String() != "entry" || head.Preds[1].String() != "body" {
		t.Errorf("head preds = %v", head.Preds)
	}
	phi, ok := head.Instrs[0].(*Phi)
	if !ok {
		t.Fatalf("first instruction of head is %T", head.Instrs[0])
	}
	if len(phi.Edges) != 2 {
		t.Fatalf("phi has %d edges", len(phi.Edges))
	}
	if c, ok := phi.Edges[0].(*Const); !ok || c.Value.Int64() != 0 {
		t.Errorf("phi edge from entry = %s", phi.Edges[0])
	}
	if phi.Edges[1].Name() != "x2" {
		t.Errorf("phi edge from body = %s", phi.Edges[1].Name())
	}

	branch, ok := head.Terminator().(*If)
	if !ok {
		t.Fatalf("head terminator is %T", head.Terminator())
	}
	if branch.Cond.Name() != "c" {
		t.Errorf("branch condition = %s", branch.Cond.Name())
	}
	if head.Succs[0].String() != "body" || head.Succs[1].String() != "exit" {
		t.Errorf("head succs = %v", head.Succs)
	}
}

func TestParseConstTyping(t *testing.T) {
	fn, err := ParseFunction(`
func f(x u8) {
entry:
  a = add x, 200
  b = add 1, a
  ret b
}
`)
	if err != nil {
		t.Fatal(err)
	}
	entry := fn.Entry()
	a := entry.Instrs[0].(*BinOp)
	if a.Y.Type() != (Int{Bits: 8, Unsigned: true}) {
		t.Errorf("constant operand typed %s", a.Y.Type())
	}
	if a.Type() != (Int{Bits: 8, Unsigned: true}) {
		t.Errorf("result typed %s", a.Type())
	}
	// Constants are interned per function.
	b := entry.Instrs[1].(*BinOp)
	if fn.ConstInt(1, Int{Bits: 8, Unsigned: true}) != b.X {
		t.Errorf("constant 1 not interned")
	}
}

func TestParseComparisonTyping(t *testing.T) {
	fn, err := ParseFunction(`
func f(x i16) {
entry:
  c = sle x, 3
  br c, a, b
a:
  ret
b:
  ret
}
`)
	if err != nil {
		t.Fatal(err)
	}
	c := fn.Entry().Instrs[0].(*BinOp)
	if c.Type() != (Bool{}) {
		t.Errorf("comparison typed %s", c.Type())
	}
}

func TestParseConvert(t *testing.T) {
	fn, err := ParseFunction(`
func f(x i32) {
entry:
  t = trunc x to i8
  s = sext t to i32
  ret s
}
`)
	if err != nil {
		t.Fatal(err)
	}
	tr := fn.Entry().Instrs[0].(*Convert)
	if tr.Op != Trunc || tr.Type() != (Int{Bits: 8}) {
		t.Errorf("trunc parsed as %s : %s", tr.Op, tr.Type())
	}
}

func TestParseMultipleFunctions(t *testing.T) {
	fns, err := Parse(`
func a() {
entry:
  ret
}

func b() {
entry:
  ret
}
`)
	if err != nil {
		t.Fatal(err)
	}
	if len(fns) != 2 || fns[0].Name != "a" || fns[1].Name != "b" {
		t.Fatalf("parsed %v", fns)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{
			"func f() {\nentry:\n  x = add y, 1\n  ret\n}",
			"undefined value y",
		},
		{
			"func f(x i8) {\nentry:\n  x = add x, 1\n  ret\n}",
			"redefinition of x",
		},
		{
			"func f() {\nentry:\n  x = add 1, 2\n  ret\n}",
			"cannot infer type of constant",
		},
		{
			"func f() {\nentry:\n  jump nowhere\n}",
			"undefined block nowhere",
		},
		{
			"func f(a i8, b i16) {\nentry:\n  x = add a, b\n  ret\n}",
			"mismatched operand types",
		},
		{
			"func f() {\nentry:\n  x = frob 1, 2\n  ret\n}",
			`unknown opcode "frob"`,
		},
	}
	for _, tt := range tests {
		_, err := ParseFunction(tt.src)
		if err == nil {
			t.Errorf("no error for %q, want %q", tt.src, tt.want)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("error = %q, want mention of %q", err, tt.want)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := ParseFunction("func f() {\nentry:\n  x = add y, 1\n  ret\n}")
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error is %T, want *ParseError", err)
	}
	if perr.Line != 3 {
		t.Errorf("error on line %d, want 3", perr.Line)
	}
}

func TestPrintRoundTrip(t *testing.T) {
	src := `
func count() {
entry:
  jump head
head:
  i = phi i32 [entry: 0, body: i.next]
  c = slt i, 10
  br c, body, done
body:
  i.next = add i, 1
  jump head
done:
  ret
}
`
	fn, err := ParseFunction(src)
	if err != nil {
		t.Fatal(err)
	}
	out := fn.String()
	for _, want := range []string{
		"func count()",
		"i = phi i32 [entry: 0, body: i.next]",
		"c = slt i, 10",
		"br c, body, done",
		"jump head",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printed function missing %q:\n%s", want, out)
		}
	}
}
