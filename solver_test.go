package vrp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"

	"honnef.co/go/vrp/ir"
)

// loadScenario parses one program from the scenario corpus. Analysis
// mutates functions, so every call returns a fresh copy.
func loadScenario(t *testing.T, name string) *ir.Function {
	t.Helper()
	arch, err := txtar.ParseFile("testdata/scenarios.txtar")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range arch.Files {
		if f.Name != name {
			continue
		}
		fn, err := ir.ParseFunction(string(f.Data))
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		return fn
	}
	t.Fatalf("no scenario %q", name)
	return nil
}

func checkRanges(t *testing.T, g *Graph, want map[string]string) {
	t.Helper()
	got := map[string]string{}
	for name := range want {
		got[name] = g.RangeByName(name).String()
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestScenarioBranch(t *testing.T) {
	fn := loadScenario(t, "branch.ir")
	g := Analyze(fn, Config{})
	checkRanges(t, g, map[string]string{
		"i":      "[-inf, +inf]",
		"i.then": "[-inf, 9]",
		"i.else": "[10, +inf]",
		"a":      "[-inf, 10]",
		"b":      "[9, +inf]",
	})
}

func TestScenarioLoop(t *testing.T) {
	fn := loadScenario(t, "loop.ir")
	g := Analyze(fn, Config{})
	checkRanges(t, g, map[string]string{
		"x1":      "[0, 100]",
		"x2":      "[1, 100]",
		"x1.body": "[0, 99]",
		"x1.exit": "[100, 100]",
	})
}

func TestScenarioSquare(t *testing.T) {
	fn := loadScenario(t, "square.ir")
	g := Analyze(fn, Config{})
	checkRanges(t, g, map[string]string{
		"n":       "[-inf, +inf]",
		"n.ge":    "[0, +inf]",
		"n.ge.ok": "[0, 16]",
		"a":       "[0, 256]",
	})
}

func TestScenarioMask(t *testing.T) {
	fn := loadScenario(t, "mask.ir")
	g := Analyze(fn, Config{})
	checkRanges(t, g, map[string]string{
		"x": "[-inf, +inf]",
		"y": "[0, 255]",
	})
}

func TestScenarioAbs(t *testing.T) {
	fn := loadScenario(t, "abs.ir")
	g := Analyze(fn, Config{})
	checkRanges(t, g, map[string]string{
		"x.neg": "[-inf, -1]",
		"x.pos": "[0, +inf]",
		"y1":    "[1, +inf]",
		"y":     "[0, +inf]",
	})
}

func TestScenarioCount(t *testing.T) {
	fn := loadScenario(t, "count.ir")
	g := Analyze(fn, Config{})
	checkRanges(t, g, map[string]string{
		"i":      "[0, 10]",
		"i.next": "[1, 10]",
		"i.body": "[0, 9]",
		"i.done": "[10, 10]",
	})
}

// Solving an already solved graph must not change any result.
func TestSolveIdempotent(t *testing.T) {
	for _, name := range []string{"branch.ir", "loop.ir", "square.ir", "count.ir"} {
		fn := loadScenario(t, name)
		g := Analyze(fn, Config{})
		first := map[string]string{}
		for v, n := range g.Vars() {
			first[v.Name()] = n.Range().String()
		}
		g.FindIntervals()
		second := map[string]string{}
		for v, n := range g.Vars() {
			second[v.Name()] = n.Range().String()
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: second solve changed ranges (-first +second):\n%s", name, diff)
		}
	}
}

// Jump-set widening changes the path to the fixpoint, not the fixpoint
// itself, on programs whose bounds are constants of the program.
func TestJumpSetWidening(t *testing.T) {
	for _, name := range []string{"branch.ir", "loop.ir", "square.ir", "count.ir"} {
		plain := Analyze(loadScenario(t, name), Config{})
		jump := Analyze(loadScenario(t, name), Config{JumpSetWidening: true})

		want := map[string]string{}
		for v, n := range plain.Vars() {
			want[v.Name()] = n.Range().String()
		}
		got := map[string]string{}
		for v, n := range jump.Vars() {
			got[v.Name()] = n.Range().String()
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: jump-set widening diverges (-plain +jumpset):\n%s", name, diff)
		}
	}
}

func TestSharedVarNodes(t *testing.T) {
	shared := VarNodes{}
	g1 := NewGraph(Config{}, shared)
	g1.BuildGraph(loadScenario(t, "mask.ir"))
	g1.FindIntervals()
	n1 := len(shared)
	g2 := NewGraph(Config{}, shared)
	g2.BuildGraph(loadScenario(t, "count.ir"))
	g2.FindIntervals()

	if len(shared) <= n1 {
		t.Errorf("second analysis did not extend the shared map (%d nodes)", len(shared))
	}
	// The second analysis must not disturb the first one's results.
	if g1.RangeByName("y").String() != "[0, 255]" {
		t.Errorf("shared map lost mask result: y = %s", g1.RangeByName("y"))
	}
	if g2.RangeByName("i").String() != "[0, 10]" {
		t.Errorf("count result wrong with shared map: i = %s", g2.RangeByName("i"))
	}
}

func TestClear(t *testing.T) {
	fn := loadScenario(t, "mask.ir")
	g := Analyze(fn, Config{})
	g.Clear()
	if len(g.Vars()) != 0 {
		t.Errorf("Clear left %d VarNodes", len(g.Vars()))
	}
	if !g.RangeByName("y").IsFull() {
		t.Errorf("RangeByName after Clear = %s, want full", g.RangeByName("y"))
	}
}

func TestPrintDot(t *testing.T) {
	fn := loadScenario(t, "mask.ir")
	g := Analyze(fn, Config{})
	var buf strings.Builder
	if err := g.Print(fn, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"digraph G {",
		`"y" [label="y: [0, 255]"];`,
		`"x" -> "y" [label="and"];`,
		"}",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
}
