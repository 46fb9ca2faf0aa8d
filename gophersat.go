package compselect

import (
	"context"
	"fmt"

	"github.com/crillab/gophersat/solver"

	"compselect/sat"
)

// SolveWithGophersat translates engine's clause stream into gophersat's
// PBConstr form and asks gophersat for a model. [SolveFor] never calls
// it: gophersat makes its own branching decisions and cannot honor
// [Decider]'s preference for the provider's ordering, so a caller using
// this backend may get a different, equally valid set of selections.
//
// On success, engine's assignment is overwritten via
// [sat.Engine.AssignFromModel] so that the usual result assembly works
// unchanged.
func SolveWithGophersat(engine *sat.Engine) (bool, error) {
	clauses := engine.Clauses()
	constrs := make([]solver.PBConstr, 0, len(clauses))
	for _, clause := range clauses {
		lits := make([]int, len(clause))
		for i, l := range clause {
			lits[i] = int(l)
		}
		constrs = append(constrs, solver.PropClause(lits...))
	}

	prob := solver.ParsePBConstrs(constrs)
	s := solver.New(prob)
	status := s.Solve()
	if status != solver.Sat {
		return false, nil
	}
	model := s.Model()
	if len(model) < engine.NumVars() {
		return false, fmt.Errorf("compselect: gophersat model has %d vars, engine allocated %d", len(model), engine.NumVars())
	}
	engine.AssignFromModel(model)
	return true, nil
}

// BuildAndSolveWithGophersat builds the problem the same way [SolveFor]
// does, then solves it with gophersat instead of the hand-written
// engine.
func BuildAndSolveWithGophersat(ctx context.Context, provider ImplProvider, req Requirements) (*Problem, bool, error) {
	problem, err := BuildProblem(ctx, provider, req, false)
	if err != nil {
		return nil, false, fmt.Errorf("solving for interface %s: %w", req.Interface, err)
	}
	ok, err := SolveWithGophersat(problem.Engine)
	if err != nil {
		return nil, false, fmt.Errorf("solving for interface %s: %w", req.Interface, err)
	}
	return problem, ok, nil
}
