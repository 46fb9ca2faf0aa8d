package compselect

import (
	"context"
	"testing"

	"compselect/sat"
)

type stubProvider struct {
	impls map[Interface][]*Implementation
}

func (p *stubProvider) GetImplementations(iface Interface) (*Interface, []*Implementation, error) {
	return nil, p.impls[iface], nil
}

func (p *stubProvider) IsDepNeeded(*Dependency) bool { return true }

type atLeastVersion Version

func (r atLeastVersion) MeetsRestriction(impl *Implementation) bool {
	return impl.IsDummy() || impl.Version >= Version(r)
}

func TestEachRecommendedDependencyConstrainsTheSharedUsedVar(t *testing.T) {
	// Two recommended dependencies on B share one "B is used" variable,
	// but each must emit its own clause with its own passing set. The
	// first dependency's restriction passes only b2; if the second
	// dependency (which passes b1 too) did not emit its own clause,
	// selecting b1 would leave the variable free and the second
	// dependency's required-command obligation could be discharged
	// without ever selecting the command.
	t.Parallel()
	runCmd := &Command{Name: "run"}
	b1 := &Implementation{ID: "b1", Version: "1", Mode: Immediate(),
		Commands: map[CommandName]*Command{"run": runCmd}}
	b2 := &Implementation{ID: "b2", Version: "2", Mode: Immediate(),
		Commands: map[CommandName]*Command{"run": {Name: "run"}}}
	a1 := &Implementation{ID: "a1", Version: "1", Mode: Immediate(),
		Dependencies: []*Dependency{
			{Target: "B", Importance: Recommended, Restrictions: []Restriction{atLeastVersion("2")}},
			{Target: "B", Importance: Recommended, RequiredCommands: []CommandName{"run"}},
		}}
	p := &stubProvider{impls: map[Interface][]*Implementation{
		"A": {a1},
		"B": {b1, b2},
	}}

	problem, err := BuildProblem(context.Background(), p, Requirements{Interface: "A"}, false)
	if err != nil {
		t.Fatalf("BuildProblem: %v", err)
	}

	b1Lit := problem.Ifaces.GetExn("B").implLits[b1]
	var usedLit sat.Lit
	for v := 0; v < problem.Engine.NumVars(); v++ {
		lit := sat.Var(v).Lit()
		if l, ok := problem.Engine.GetUserDataForLit(lit).(varLabel); ok && l.kind == labelInterface && l.iface == "B" {
			usedLit = lit
		}
	}
	if usedLit == 0 {
		t.Fatalf("no used variable was allocated for B")
	}

	found := false
	for _, clause := range problem.Engine.Clauses() {
		if len(clause) != 2 {
			continue
		}
		if (clause[0] == usedLit && clause[1] == sat.Neg(b1Lit)) ||
			(clause[1] == usedLit && clause[0] == sat.Neg(b1Lit)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("selecting %v must force B's used variable", b1)
	}
}
