// vrp analyzes textual IR files and reports the value range of every
// integer SSA name.
//
// Usage:
//
//	vrp [flags] file.ir...
//
// For each function in each file, vrp prints one "name: [lo, hi]" line
// per SSA name, including the sigma names introduced by e-SSA lifting.
// With -dot, the constraint graph of each function is additionally
// written to <function>.dot.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"honnef.co/go/vrp"
	"honnef.co/go/vrp/config"
	"honnef.co/go/vrp/ir"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: vrp [flags] file.ir...\n")
	flag.PrintDefaults()
}

func main() {
	fDot := flag.Bool("dot", false, "dump constraint graphs in Graphviz dot format")
	fJumpSet := flag.Bool("jump-set", false, "use jump-set widening")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	wd, err := os.Getwd()
	if err != nil {
		fatalf("%s", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		fatalf("could not load configuration: %s", err)
	}
	// Flags override the configuration file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dot":
			cfg.Dot = *fDot
		case "jump-set":
			cfg.JumpSetWidening = *fJumpSet
		}
	})

	for _, arg := range flag.Args() {
		src, err := os.ReadFile(arg)
		if err != nil {
			fatalf("%s", err)
		}
		fns, err := ir.Parse(string(src))
		if err != nil {
			fatalf("%s: %s", arg, err)
		}
		for _, fn := range fns {
			analyze(fn, cfg)
		}
	}
}

func analyze(fn *ir.Function, cfg config.Config) {
	g := vrp.Analyze(fn, vrp.Config{JumpSetWidening: cfg.JumpSetWidening})

	fmt.Printf("func %s:\n", fn.Name)
	vars := maps.Values(g.Vars())
	slices.SortFunc(vars, func(a, b *vrp.VarNode) bool { return a.Value().Name() < b.Value().Name() })
	for _, n := range vars {
		if _, ok := n.Value().(*ir.Const); ok {
			continue
		}
		fmt.Printf("  %s: %s\n", n.Value().Name(), n.Range())
	}

	if cfg.Dot {
		path := filepath.Join(cfg.DotDir, fn.Name+".dot")
		f, err := os.Create(path)
		if err != nil {
			fatalf("%s", err)
		}
		if err := g.Print(fn, f); err != nil {
			f.Close()
			fatalf("%s: %s", path, err)
		}
		if err := f.Close(); err != nil {
			fatalf("%s: %s", path, err)
		}
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "vrp: "+format+"\n", args...)
	os.Exit(1)
}
