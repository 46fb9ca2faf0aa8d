package compselect

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"compselect/internal/itertools"
	"compselect/internal/syncmap"
	"compselect/sat"
)

// A Selection is one interface's resolved implementation, along with
// enough of the command/binding/dependency tree to report why it was
// chosen and what using it actually requires.
type Selection struct {
	Interface Interface
	Impl      *Implementation
	// Command is non-nil only on the root interface's selection, when the
	// root requirement names a command; it is that command. Commands
	// required by other selections appear only among Element's children.
	Command *Command
	// CompiledFrom is set when Impl requires compilation: the selection
	// of the source implementation Impl's companion [LazySource] resolved
	// to, assembled the same way Impl itself was.
	CompiledFrom *Selection
	// Element is Impl's own provider-supplied node with its children
	// replaced by only the dependency, command, and binding subtrees
	// this solve actually used, plus any manifest-digest child.
	Element Element
}

// FilteredAttrs returns the selection's implementation attributes with
// bookkeeping entries (keys with a leading ".") removed.
func (s *Selection) FilteredAttrs() map[string]string {
	out := make(map[string]string, len(s.Impl.Attrs))
	for k, v := range s.Impl.Attrs {
		if strings.HasPrefix(k, ".") {
			continue
		}
		out[k] = v
	}
	return out
}

// A Result is the outcome of a solve: one [Selection] per interface the
// solution actually uses. OK reports whether the solve succeeded on its
// first, non-diagnostic pass; when it is false, this Result comes from
// the closest-match fallback and [Result.Explain] can report why a real
// candidate was not chosen.
type Result struct {
	Problem *Problem
	OK      bool

	byInterface syncmap.Map[Interface, *Selection]
}

// Explain reports why iface's first real (non-dummy) candidate, in the
// provider's order, that is not selected ended up unselected. It returns
// nil when r.OK is true.
func (r *Result) Explain(iface Interface) *sat.Diagnostic {
	if r.OK {
		return nil
	}
	entry, ok := r.Problem.Ifaces.Get(iface)
	if !ok {
		return nil
	}
	for _, impl := range entry.impls {
		if impl.IsDummy() {
			continue
		}
		lit, ok := entry.implLits[impl]
		if !ok || r.Problem.Engine.IsTrue(lit) {
			continue
		}
		return r.Problem.Engine.ExplainReason(lit)
	}
	return nil
}

// Lookup returns the selection made for iface, if the solution uses it.
func (r *Result) Lookup(iface Interface) (*Selection, bool) {
	return r.byInterface.Load(iface)
}

// GetSelected returns iface's selected implementation. It never returns
// the dummy implementation, even in a closest-match result.
func (r *Result) GetSelected(iface Interface) (*Implementation, bool) {
	sel, ok := r.Lookup(iface)
	if !ok || sel.Impl.IsDummy() {
		return nil, false
	}
	return sel.Impl, true
}

// An ImplementationChoice pairs an interface the builder discovered
// with the SAT literal and implementation the solve committed to, if
// any.
type ImplementationChoice struct {
	Iface Interface
	Lit   sat.Lit
	Impl  *Implementation
	Has   bool
}

// Implementations returns one entry per interface the builder
// discovered during problem construction, in ascending lexicographic
// order, each reporting whether (and to what) it was resolved.
func (r *Result) Implementations() []ImplementationChoice {
	var out []ImplementationChoice
	for _, kv := range r.Problem.Ifaces.Bindings(func(a, b Interface) bool { return a < b }) {
		entry := kv.Val
		choice := ImplementationChoice{Iface: kv.Key}
		if entry.err == nil && entry.handle != nil {
			if lit, ok := r.Problem.Engine.GetSelected(entry.handle); ok {
				choice.Lit = lit
				choice.Impl = asVarLabel(r.Problem.Engine.GetUserDataForLit(lit)).impl
				choice.Has = true
			}
		}
		out = append(out, choice)
	}
	return out
}

// ImplProvider returns the provider this result's problem was built
// against.
func (r *Result) ImplProvider() ImplProvider {
	return r.Problem.Provider
}

// Requirements returns the root requirement this result was solved
// for.
func (r *Result) Requirements() Requirement {
	return r.Problem.RootReq
}

// Selections returns every selection the solution made, ordered
// lexicographically by interface.
func (r *Result) Selections() []*Selection {
	var out []*Selection
	r.byInterface.Range(func(_ Interface, s *Selection) bool {
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Interface < out[j].Interface })
	return out
}

// AssembleResult builds a [Result] for callers that drive a [Problem]
// through a solver other than [SolveFor], such as
// [BuildAndSolveWithGophersat]. The caller must have checked that the
// solve succeeded. The returned Result's OK is always true;
// diagnostic-mode retry is a [SolveFor]-only concern.
func AssembleResult(ctx context.Context, problem *Problem) (*Result, error) {
	res, err := assembleResult(ctx, problem)
	if err != nil {
		return nil, err
	}
	res.OK = true
	return res, nil
}

// assembleResult walks every interface the builder discovered and, for
// each one the satisfying assignment selected a candidate for,
// assembles a [Selection] concurrently.
func assembleResult(ctx context.Context, problem *Problem) (*Result, error) {
	res := &Result{Problem: problem}

	g, ctx := errgroup.WithContext(ctx)
	for _, iface := range problem.Ifaces.Snapshot() {
		entry := problem.Ifaces.GetExn(iface)
		if entry.err != nil || entry.handle == nil {
			continue
		}
		lit, ok := problem.Engine.GetSelected(entry.handle)
		if !ok {
			continue
		}
		impl := asVarLabel(problem.Engine.GetUserDataForLit(lit)).impl
		iface, impl := iface, impl
		g.Go(func() error {
			sel, err := assembleSelection(problem, iface, impl)
			if err != nil {
				return fmt.Errorf("assembling selection for %s: %w", iface, err)
			}
			if req := problem.RootReq; req.Interface == iface && req.IsCommand() {
				if cmd, ok := impl.Commands[req.Command]; ok {
					sel.Command = cmd
				}
			}
			res.byInterface.LoadOrStore(iface, sel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func assembleSelection(problem *Problem, iface Interface, impl *Implementation) (*Selection, error) {
	sel := &Selection{Interface: iface, Impl: impl}

	if src, needsCompile := impl.Mode.Source(); needsCompile {
		companion, err := src.Force()
		if err != nil {
			return nil, err
		}
		compiledFrom, err := assembleSelection(problem, iface, companion)
		if err != nil {
			return nil, err
		}
		sel.CompiledFrom = compiledFrom
	}

	if impl.Element != nil {
		sel.Element = impl.Element.WithChildren(usedChildren(problem, iface, impl))
	}
	return sel, nil
}

// depInUse reports whether dep's target interface was actually selected
// in this solve. Shared by impl-level and command-level child filtering.
func depInUse(problem *Problem, dep *Dependency) bool {
	target, ok := problem.Ifaces.Get(dep.Target)
	if !ok || target.handle == nil {
		return false
	}
	_, ok = problem.Engine.GetSelected(target.handle)
	return ok
}

// usableDeps returns dep.Element for every one of deps that is in use
// and non-restricting.
func usableDeps(problem *Problem, deps []*Dependency) []Element {
	usable := itertools.Filter(slices.Values(deps), func(dep *Dependency) bool {
		return dep.Importance != Restricts && dep.Element != nil && depInUse(problem, dep)
	})
	return slices.Collect(itertools.Map(usable, func(dep *Dependency) Element { return dep.Element }))
}

// sortedCommands returns m's commands ordered by name, for deterministic
// output.
func sortedCommands(m map[CommandName]*Command) []*Command {
	out := make([]*Command, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// stripRequiresChildren drops any child named "requires", "restricts",
// or "runner" from elem; the ones actually in use are appended back by
// the caller from the model's own dependency list.
func stripRequiresChildren(elem Element) []Element {
	var out []Element
	for _, child := range elem.Children() {
		switch child.Name() {
		case "requires", "restricts", "runner":
			continue
		}
		out = append(out, child)
	}
	return out
}

// usedChildren collects the child elements this solve actually relied
// on: in-use dependency subtrees, every command of impl the solution
// activated (its own subtree filtered the same way), impl's
// self-bindings, and any manifest-digest child.
func usedChildren(problem *Problem, iface Interface, impl *Implementation) []Element {
	var children []Element
	children = append(children, usableDeps(problem, impl.Dependencies)...)
	for _, cmd := range sortedCommands(impl.Commands) {
		if cmd.Element == nil {
			continue
		}
		group, ok := problem.Commands.Get(commandKey{name: cmd.Name, iface: iface})
		if !ok || group.err != nil {
			continue
		}
		lit, ok := group.litFor(impl)
		if !ok || !problem.Engine.IsTrue(lit) {
			continue
		}
		cmdChildren := stripRequiresChildren(cmd.Element)
		cmdChildren = append(cmdChildren, usableDeps(problem, cmd.Dependencies)...)
		children = append(children, cmd.Element.WithChildren(cmdChildren))
	}
	for _, binding := range impl.SelfBindings {
		if binding.Element != nil {
			children = append(children, binding.Element)
		}
	}
	if impl.Element != nil {
		for _, child := range impl.Element.Children() {
			if child.Name() == "manifest-digest" {
				children = append(children, child)
			}
		}
	}
	return children
}
