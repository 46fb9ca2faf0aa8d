// Command compselect drives the component-selection solver against a
// JSON scenario file describing a fake catalogue of interfaces and
// implementations, since real feed parsing and network fetching are
// out of scope for the solver itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/amterp/color"

	"compselect"
	"compselect/internal/logging"
	"compselect/internal/scenario"
	"compselect/sat"
)

var (
	cyanf    = color.New(color.FgCyan).SprintfFunc()
	hicyanf  = color.New(color.FgHiCyan).SprintfFunc()
	hiblackf = color.New(color.FgHiBlack).SprintfFunc()
)

type solveFn = func(ctx context.Context, provider compselect.ImplProvider, req compselect.Requirements) (*compselect.Result, error)

type config struct {
	scenarioPath string
	solve        *solveFn
	showDoc      bool
}

func solveGophersat(ctx context.Context, provider compselect.ImplProvider, req compselect.Requirements) (*compselect.Result, error) {
	problem, ok, err := compselect.BuildAndSolveWithGophersat(ctx, provider, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("gophersat found the scenario unsatisfiable")
	}
	return compselect.AssembleResult(ctx, problem)
}

var allSolveFuncs = [...]solveFn{
	compselect.SolveFor,
	solveGophersat,
}

var allSolvers = map[string]*solveFn{
	"engine":    &allSolveFuncs[0],
	"gophersat": &allSolveFuncs[1],
}

func printResult(res *compselect.Result) {
	status := hicyanf("closest match (unsatisfiable)")
	if res.OK {
		status = cyanf("satisfied")
	}
	fmt.Printf("%s: %s\n", hiblackf("solve status"), status)
	for _, sel := range res.Selections() {
		marker := ""
		if sel.Impl.IsDummy() {
			marker = hiblackf(" (no real candidate)")
		}
		fmt.Printf("%s = %s%s\n", sel.Interface, sel.Impl, marker)
		if sel.CompiledFrom != nil {
			fmt.Printf("  %s %s\n", hiblackf("compiled from"), sel.CompiledFrom.Impl)
		}
	}
}

// printDocument dumps the assembled selections document as a minimal
// indented tree; this module owns only the document's shape, not a real
// XML serializer, so it is not written as well-formed XML.
func printDocument(elem compselect.Element, indent int) {
	attrs := make([]string, 0, len(elem.Attrs()))
	for k, v := range elem.Attrs() {
		attrs = append(attrs, fmt.Sprintf("%s=%q", k, v))
	}
	slices.Sort(attrs)
	fmt.Printf("%s<%s %s>\n", strings.Repeat("  ", indent), elem.Name(), strings.Join(attrs, " "))
	for _, child := range elem.Children() {
		printDocument(child, indent+1)
	}
}

func explain(res *compselect.Result, iface compselect.Interface) {
	d := res.Explain(iface)
	if d == nil {
		fmt.Println(hiblackf("nothing to explain"))
		return
	}
	var show func(d *sat.Diagnostic, indent int)
	show = func(d *sat.Diagnostic, indent int) {
		fmt.Printf("%s%v: %s\n", strings.Repeat("  ", indent), d.Lit, d.Reason)
		for _, child := range d.Because {
			show(child, indent+1)
		}
	}
	show(d, 0)
}

func choiceFlag[T any](p *T, name string, choices map[string]T, dflt string, usage string) {
	cstr := strings.Join(slices.Sorted(maps.Keys(choices)), ", ")
	var ok bool
	if *p, ok = choices[dflt]; !ok {
		panic(fmt.Errorf("invalid default for %v option: %v", dflt, name))
	}
	usage += fmt.Sprintf(" (one of: %v; default: %v)", cstr, dflt)
	flag.Func(name, usage, func(arg string) error {
		if arg == "" {
			arg = dflt
		}
		v, ok := choices[arg]
		if !ok {
			return fmt.Errorf("expected one of: %v", cstr)
		}
		*p = v
		return nil
	})
}

var slogLevel = func() *slog.LevelVar {
	lvl := &slog.LevelVar{}
	lvl.Set(logging.LevelInfo)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
	return lvl
}()

func run(ctx context.Context, cfg *config) error {
	f, err := os.Open(cfg.scenarioPath)
	if err != nil {
		return fmt.Errorf("opening scenario %s: %w", cfg.scenarioPath, err)
	}
	defer f.Close()

	provider, req, err := scenario.Load(f)
	if err != nil {
		return err
	}
	res, err := (*cfg.solve)(ctx, provider, req)
	if err != nil {
		return err
	}
	printResult(res)
	if cfg.showDoc {
		printDocument(res.GetSelections(), 0)
	}
	if !res.OK {
		explain(res, req.Interface)
	}
	return nil
}

func parseFlags() *config {
	cfg := &config{}

	bumpLogLevel := func(lower bool) {
		slog.Debug("log level pre-change", "level", slogLevel.Level())
		slogLevel.Set(logging.BumpLevel(slogLevel.Level(), lower))
		slog.Debug("log level post-change", "level", slogLevel.Level())
	}
	setLogLevel := func(arg string) error {
		lvl, err := logging.StringToLevel(arg)
		if err != nil {
			return err
		}
		slogLevel.Set(lvl)
		return nil
	}
	flag.BoolFunc("v", "Increase log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(true)
		default:
			return setLogLevel(arg)
		}
		return nil
	})
	flag.BoolFunc("q", "Decrease log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(false)
		default:
			return setLogLevel(arg)
		}
		return nil
	})

	colorChoices := map[string]bool{
		"auto":   color.NoColor,
		"never":  true,
		"always": false,
	}
	choiceFlag(&color.NoColor, "color", colorChoices, "auto", "Output colors according to `mode`.")
	choiceFlag(&cfg.solve, "engine", allSolvers, "engine", "Solve using the backend indicated by `mode`.")
	flag.BoolVar(&cfg.showDoc, "doc", false, "Also print the assembled selections document.")

	help := func(string) error {
		flag.CommandLine.SetOutput(os.Stdout)
		flag.Usage()
		os.Exit(0)
		return nil
	}
	helpUsage := "Print usage information and exit."
	flag.BoolFunc("h", helpUsage, help)
	flag.BoolFunc("help", helpUsage, help)

	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		log.Fatal("exactly one scenario file path is required")
	}
	cfg.scenarioPath = args[0]
	return cfg
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := parseFlags()
	if err := run(ctx, cfg); err != nil {
		slog.ErrorContext(ctx, "failed", "error", err)
		os.Exit(1)
	}
}
