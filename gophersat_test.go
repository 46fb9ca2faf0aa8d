package compselect_test

import (
	"context"
	"testing"

	. "compselect"
	fp "compselect/internal/test/fakeprovider"
)

func TestGophersatBackendAgreesOnAForcedSolution(t *testing.T) {
	// On a problem with exactly one satisfying assignment, the gophersat
	// backend must land on the same selections the default engine would,
	// despite making its own branching decisions.
	t.Parallel()
	p := fp.NewProvider().
		Add("A", fp.NewImpl("a1", "1", fp.Deps(
			fp.NewDependency("B", Essential, fp.Restriction(fp.MinVersion{Min: "2"})),
		))).
		Add("B", fp.NewImpl("b1", "1"), fp.NewImpl("b2", "2"))

	problem, ok, err := BuildAndSolveWithGophersat(context.Background(), p, Requirements{Interface: "A"})
	if err != nil {
		t.Fatalf("BuildAndSolveWithGophersat: %v", err)
	}
	if !ok {
		t.Fatalf("expected a satisfiable problem")
	}
	res, err := AssembleResult(context.Background(), problem)
	if err != nil {
		t.Fatalf("AssembleResult: %v", err)
	}
	wantIDs := map[Interface]string{"A": "a1", "B": "b2"}
	for iface, wantID := range wantIDs {
		sel, selOK := res.Lookup(iface)
		if !selOK {
			t.Fatalf("missing selection for %s", iface)
		}
		if sel.Impl.ID != wantID {
			t.Fatalf("%s: got %q, want %q", iface, sel.Impl.ID, wantID)
		}
	}
}

func TestGophersatBackendReportsUnsat(t *testing.T) {
	// The cross-check backend has no diagnostic-mode retry of its own; an
	// unsatisfiable problem simply comes back ok=false.
	t.Parallel()
	p := fp.NewProvider().
		Add("A", fp.NewImpl("a1", "1", fp.Deps(fp.NewDependency("B", Essential))))

	_, ok, err := BuildAndSolveWithGophersat(context.Background(), p, Requirements{Interface: "A"})
	if err != nil {
		t.Fatalf("BuildAndSolveWithGophersat: %v", err)
	}
	if ok {
		t.Fatalf("expected unsat: B has no candidates")
	}
}
