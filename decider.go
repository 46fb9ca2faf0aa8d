package compselect

import (
	mapset "github.com/deckarep/golang-set/v2"

	"compselect/sat"
)

// A Decider drives [sat.Engine.RunSolver]'s decision points for one
// [Problem]. It walks the partial solution depth-first from the root
// requirement, preferring the provider's own ranking (preserved by
// [ProblemBuilder] as SAT variable insertion order): at each interface
// or command it offers the first candidate neither forced true nor
// forced false, and once a selection is settled it descends into that
// selection's dependencies and required commands. A per-call visited
// set breaks graph cycles.
type Decider struct {
	problem *Problem
}

// NewDecider returns a Decider for problem.
func NewDecider(problem *Problem) *Decider {
	return &Decider{problem: problem}
}

// Decide implements the decide callback [sat.Engine.RunSolver] expects.
func (d *Decider) Decide() (sat.Lit, bool) {
	visited := mapset.NewThreadUnsafeSet[Requirement]()
	return d.findUndecided(d.problem.RootReq, visited)
}

// findUndecided returns the first undecided literal reachable from req,
// descending into whichever candidate the engine has already committed
// to.
func (d *Decider) findUndecided(req Requirement, visited mapset.Set[Requirement]) (sat.Lit, bool) {
	if visited.Contains(req) {
		return 0, false
	}
	visited.Add(req)

	if req.IsCommand() {
		return d.findUndecidedCommand(req, visited)
	}

	entry, ok := d.problem.Ifaces.Get(req.Interface)
	if !ok || entry.err != nil || entry.handle == nil {
		return 0, false
	}
	if lit, ok := d.problem.Engine.GetBestUndecided(entry.handle); ok {
		return lit, true
	}
	selectedLit, ok := d.problem.Engine.GetSelected(entry.handle)
	if !ok {
		return 0, false
	}
	impl := asVarLabel(d.problem.Engine.GetUserDataForLit(selectedLit)).impl
	return d.findUndecidedDeps(impl.Dependencies, visited)
}

// findUndecidedCommand descends into the (command, interface) candidate
// set [ProblemBuilder.addCommand] built. Once the command is settled,
// the walk falls through to the owning interface itself.
func (d *Decider) findUndecidedCommand(req Requirement, visited mapset.Set[Requirement]) (sat.Lit, bool) {
	entry, ok := d.problem.Commands.Get(commandKey{name: req.Command, iface: req.Interface})
	if !ok || entry.err != nil || entry.handle == nil {
		return 0, false
	}
	if lit, ok := d.problem.Engine.GetBestUndecided(entry.handle); ok {
		return lit, true
	}
	selectedLit, ok := d.problem.Engine.GetSelected(entry.handle)
	if !ok {
		return 0, false
	}
	cmd := asVarLabel(d.problem.Engine.GetUserDataForLit(selectedLit)).command
	if lit, ok := d.findUndecidedDeps(cmd.Dependencies, visited); ok {
		return lit, true
	}
	return d.findUndecided(Requirement{Interface: req.Interface}, visited)
}

// findUndecidedDeps descends into each dependency's target interface and
// then its required commands, in order, skipping Restricts dependencies
// and any dependency the provider reports as not needed.
func (d *Decider) findUndecidedDeps(deps []*Dependency, visited mapset.Set[Requirement]) (sat.Lit, bool) {
	for _, dep := range deps {
		if dep.Importance == Restricts {
			continue
		}
		if d.problem.Provider != nil && !d.problem.Provider.IsDepNeeded(dep) {
			continue
		}
		if lit, ok := d.findUndecided(Requirement{Interface: dep.Target}, visited); ok {
			return lit, true
		}
		for _, cmdName := range dep.RequiredCommands {
			if lit, ok := d.findUndecided(Requirement{Interface: dep.Target, Command: cmdName}, visited); ok {
				return lit, true
			}
		}
	}
	return 0, false
}
