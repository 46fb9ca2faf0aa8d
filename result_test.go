package compselect_test

import (
	"context"
	"testing"

	. "compselect"
	fp "compselect/internal/test/fakeprovider"
)

func TestClosestMatchSynthesizesDummyCommand(t *testing.T) {
	// The dummy implementation offers every command on request.
	// Root asks for a command no real candidate of A
	// exports, so a first-pass solve must fail, but the closest-match
	// retry must still succeed by falling back to the dummy's
	// synthesized command rather than leaving the root unsatisfiable.
	t.Parallel()
	p := fp.NewProvider().Add("A", fp.NewImpl("a1", "1"))
	res, err := SolveFor(context.Background(), p, Requirements{Interface: "A", Command: "run"})
	if err != nil {
		t.Fatalf("SolveFor: %v", err)
	}
	if res.OK {
		t.Fatalf("expected ok=false: a1 does not export command %q", "run")
	}
	sel, ok := res.Lookup("A")
	if !ok {
		t.Fatalf("expected a closest-match selection for A")
	}
	if !sel.Impl.IsDummy() {
		t.Fatalf("expected A's closest-match selection to be the dummy impl, got %q", sel.Impl.ID)
	}
}

func TestClosestMatchSynthesizesDummyRequiredCommand(t *testing.T) {
	// Same guarantee, but for a required command on an essential
	// dependency rather than the root itself: B has no candidates at
	// all, so A's requirement for B's "build" command can only be
	// satisfied by the dummy's synthesized command in diagnostic mode.
	t.Parallel()
	p := fp.NewProvider().
		Add("A", fp.NewImpl("a1", "1", fp.Deps(
			fp.NewDependency("B", Essential, fp.RequireCommand("build")),
		)))
	res, err := SolveFor(context.Background(), p, Requirements{Interface: "A"})
	if err != nil {
		t.Fatalf("SolveFor: %v", err)
	}
	if res.OK {
		t.Fatalf("expected ok=false: B has no real candidates to provide command %q", "build")
	}
	sel, ok := res.Lookup("B")
	if !ok || !sel.Impl.IsDummy() {
		t.Fatalf("expected a dummy selection for B, got %v, %v", sel, ok)
	}
}

func TestGetSelectionsDocumentShape(t *testing.T) {
	// Root attrs name the root requirement; each <selection> carries
	// interface=iface and drops stability/main/self-test and a from-feed
	// that merely repeats the interface.
	t.Parallel()
	a1 := fp.NewImpl("a1", "1",
		fp.Attr("stability", "testing"),
		fp.Attr("main", "bin/a"),
		fp.Attr("self-test", "test.sh"),
		fp.Attr("from-feed", "A"),
	)
	p := fp.NewProvider().Add("A", a1)

	res, err := SolveFor(context.Background(), p, Requirements{Interface: "A"})
	if err != nil {
		t.Fatalf("SolveFor: %v", err)
	}
	doc := res.GetSelections()
	if doc.Name() != "selections" {
		t.Fatalf("got root name %q, want %q", doc.Name(), "selections")
	}
	if doc.Attrs()["interface"] != "A" {
		t.Fatalf("got root interface attr %q, want %q", doc.Attrs()["interface"], "A")
	}
	if _, hasCommand := doc.Attrs()["command"]; hasCommand {
		t.Fatalf("root should have no command attr for a bare-interface request")
	}
	children := doc.Children()
	if len(children) != 1 {
		t.Fatalf("got %d top-level selections, want 1", len(children))
	}
	sel := children[0]
	if sel.Name() != "selection" {
		t.Fatalf("got selection name %q, want %q", sel.Name(), "selection")
	}
	attrs := sel.Attrs()
	for _, dropped := range []string{"stability", "main", "self-test", "from-feed"} {
		if _, present := attrs[dropped]; present {
			t.Fatalf("expected %q to be dropped from selection attrs, got %v", dropped, attrs)
		}
	}
	if attrs["interface"] != "A" {
		t.Fatalf("got selection interface attr %q, want %q", attrs["interface"], "A")
	}
}

func TestGetSelectionsIncludesCommandForRootCommandRequest(t *testing.T) {
	t.Parallel()
	p := fp.NewProvider().Add("A", fp.NewImpl("a1", "1", fp.Commands(fp.NewCommand("run", nil))))
	res, err := SolveFor(context.Background(), p, Requirements{Interface: "A", Command: "run"})
	if err != nil {
		t.Fatalf("SolveFor: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK solve")
	}
	doc := res.GetSelections()
	if doc.Attrs()["command"] != "run" {
		t.Fatalf("got root command attr %q, want %q", doc.Attrs()["command"], "run")
	}
}

func TestCommandSubtreeDropsNestedRequiresAndReappendsInUseDeps(t *testing.T) {
	// A command's own subtree is copied minus any nested
	// requires/restricts/runner children, then the in-use,
	// non-restricting dependency nodes are appended back from the
	// model's own dependency list (not from whatever raw children the
	// command's XML node happened to carry).
	t.Parallel()
	rawRequires := fp.NewElement("requires", map[string]string{"interface": "stale"})
	arg := fp.NewElement("arg", map[string]string{"value": "--verbose"})
	runCmd := fp.NewCommand("run", []*Dependency{
		fp.NewDependency("B", Essential),
	})
	runCmd.Element = fp.NewElement("command", map[string]string{"name": "run"}, rawRequires, arg)

	a1 := fp.NewImpl("a1", "1", fp.Commands(runCmd))
	p := fp.NewProvider().
		Add("A", a1).
		Add("B", fp.NewImpl("b1", "1"))

	res, err := SolveFor(context.Background(), p, Requirements{Interface: "A", Command: "run"})
	if err != nil {
		t.Fatalf("SolveFor: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK solve")
	}
	sel, ok := res.Lookup("A")
	if !ok {
		t.Fatalf("expected a selection for A")
	}
	var cmdElem Element
	for _, child := range sel.Element.Children() {
		if child.Name() == "command" {
			cmdElem = child
		}
	}
	if cmdElem == nil {
		t.Fatalf("expected the run command's element among A's selection children")
	}
	var names []string
	for _, child := range cmdElem.Children() {
		names = append(names, child.Name())
	}
	foundStaleRequires := false
	foundArg := false
	foundRealRequires := false
	for i, n := range names {
		switch {
		case n == "requires" && cmdElem.Children()[i].Attrs()["interface"] == "stale":
			foundStaleRequires = true
		case n == "requires":
			foundRealRequires = true
		case n == "arg":
			foundArg = true
		}
	}
	if foundStaleRequires {
		t.Fatalf("expected the raw nested <requires interface=stale> child to be dropped, got children %v", names)
	}
	if !foundArg {
		t.Fatalf("expected the non-requires <arg> child to survive, got children %v", names)
	}
	if !foundRealRequires {
		t.Fatalf("expected the model's own dependency on B to be appended back, got children %v", names)
	}
}
