// Package compselect selects a mutually consistent set of component
// implementations, one per participating interface, that satisfies
// dependencies, version/architecture restrictions, command requirements,
// and replacement conflicts, given a root requirement and a catalogue of
// candidate implementations supplied by an external provider.
//
// # Quick start
//
// Build a [Requirements] value naming the root interface (and, if
// needed, a command within it), implement [ImplProvider] over your own
// catalogue (or use a fixture from internal/test/fakeprovider in tests),
// and call [SolveFor]:
//
//	req := compselect.Requirements{Interface: "https://example.com/app.xml"}
//	result, err := compselect.SolveFor(ctx, provider, req)
//	if err != nil {
//		return err
//	}
//	doc := result.GetSelections()
//
// # Architecture
//
// [SolveFor] asks a [ProblemBuilder] to walk the requirement graph
// reachable from the root (consulting the [ImplProvider] lazily, as
// interfaces and commands are first mentioned), which allocates SAT
// variables and emits clauses into a [sat.Engine]. The engine is then
// driven by [Decider], a depth-first heuristic that prefers whatever
// candidate the provider ranked highest. A satisfying assignment is
// turned into a selections document by [assembleResult]. If no
// assignment exists, the whole process repeats in diagnostic mode, which
// adds a dummy implementation to every interface so a (reportedly
// unsatisfying) selection can always be produced and explained.
package compselect

// An Interface identifies an abstract component. It is a URI in the
// system this core serves, but opaque to everything in this module.
type Interface string

// A CommandName names a command exported by an implementation, such as
// "run" or "compile".
type CommandName string
