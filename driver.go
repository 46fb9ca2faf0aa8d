package compselect

import (
	"context"
	"fmt"
	"log/slog"
)

// SolveFor finds a mutually consistent set of implementations satisfying
// req against provider, preferring provider's own candidate ranking at
// every branch point.
//
// An unsatisfiable root is not reported as a Go error: SolveFor
// re-solves in diagnostic mode (every interface gets an extra trivially
// satisfying dummy candidate) and returns that closest-match Result with
// [Result.OK] set to false; [Result.Explain] then reports why the real
// catalogue failed. A non-nil error means the provider itself failed, or
// diagnostic mode also came back unsatisfiable, which the dummy
// candidates make unreachable by construction.
func SolveFor(ctx context.Context, provider ImplProvider, req Requirements) (*Result, error) {
	problem, err := BuildProblem(ctx, provider, req, false)
	if err != nil {
		return nil, fmt.Errorf("solving for interface %s: %w", req.Interface, err)
	}
	if doSolve(problem) {
		slog.InfoContext(ctx, "solve succeeded", "interface", req.Interface, "command", req.Command)
		res, err := assembleResult(ctx, problem)
		if err != nil {
			return nil, fmt.Errorf("solving for interface %s: %w", req.Interface, err)
		}
		res.OK = true
		return res, nil
	}
	slog.InfoContext(ctx, "first pass unsatisfiable, retrying in diagnostic mode", "interface", req.Interface)

	diagProblem, err := BuildProblem(ctx, provider, req, true)
	if err != nil {
		return nil, fmt.Errorf("solving for interface %s: %w", req.Interface, err)
	}
	if !doSolve(diagProblem) {
		return nil, fmt.Errorf("solving for interface %s: %w", req.Interface, &InternalError{Msg: fmt.Sprintf(
			"diagnostic-mode solve for %s was also unsatisfiable; every interface should have had a trivially satisfiable dummy candidate",
			req.Interface)})
	}
	res, err := assembleResult(ctx, diagProblem)
	if err != nil {
		return nil, fmt.Errorf("solving for interface %s: %w", req.Interface, err)
	}
	res.OK = false
	return res, nil
}

func doSolve(problem *Problem) bool {
	decider := NewDecider(problem)
	return problem.Engine.RunSolver(decider.Decide)
}
