package compselect

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"compselect/internal/itertools"
	"compselect/internal/logging"
	"compselect/sat"
)

// An ifaceEntry holds what the builder has discovered about one interface:
// its candidate implementations, each one's SAT variable, and the
// at-most-one group tying them together.
type ifaceEntry struct {
	iface       Interface
	replacement *Interface
	impls       []*Implementation
	implLits    map[*Implementation]sat.Lit
	handle      *sat.AtMostOneHandle
	err         error
}

// nonDummyLits returns entry's impl literals, excluding the diagnostic
// dummy candidate.
func (entry *ifaceEntry) nonDummyLits() []sat.Lit {
	lits := make([]sat.Lit, 0, len(entry.impls))
	for _, impl := range entry.impls {
		if impl.IsDummy() {
			continue
		}
		lits = append(lits, entry.implLits[impl])
	}
	return lits
}

// A commandKey identifies one command name within one interface.
type commandKey struct {
	name  CommandName
	iface Interface
}

// A commandCandidate is one qualifying implementation's contribution to a
// (command, interface) candidate set.
type commandCandidate struct {
	impl    *Implementation
	cmd     *Command
	implLit sat.Lit
	lit     sat.Lit
}

// A cmdEntry holds the candidate set for one (command name, interface)
// pair: a command variable per qualifying implementation, all governed by
// a single at-most-one group.
type cmdEntry struct {
	name   CommandName
	iface  Interface
	cands  []*commandCandidate
	handle *sat.AtMostOneHandle
	err    error
}

// litFor returns the command variable impl contributes to this candidate
// set, if impl is one of the qualifying implementations.
func (e *cmdEntry) litFor(impl *Implementation) (sat.Lit, bool) {
	for _, cand := range e.cands {
		if cand.impl == impl {
			return cand.lit, true
		}
	}
	return 0, false
}

func (e *cmdEntry) lits() []sat.Lit {
	if e.handle == nil {
		return nil
	}
	return e.handle.Lits()
}

// A Problem is a built SAT instance ready to hand to a [Decider] and
// [sat.Engine.RunSolver].
type Problem struct {
	Engine     *sat.Engine
	RootReq    Requirement
	Ifaces     *candidateCache[Interface, ifaceEntry]
	Commands   *candidateCache[commandKey, cmdEntry]
	Diagnostic bool
	Provider   ImplProvider
}

// A ProblemBuilder walks the requirement graph reachable from a root
// requirement, consulting an [ImplProvider] lazily as interfaces and
// commands are first mentioned, and emits the SAT clauses that encode
// dependencies, restrictions, required commands, replacement conflicts,
// and machine-group consistency.
type ProblemBuilder struct {
	ctx        context.Context
	engine     *sat.Engine
	provider   ImplProvider
	req        Requirements
	diagnostic bool

	ifaces   *candidateCache[Interface, ifaceEntry]
	commands *candidateCache[commandKey, cmdEntry]

	groups     map[string]sat.Lit
	groupOrder []string

	// Interfaces that named a <replaced-by> target, queued for the
	// replacement-conflict post-pass.
	replaced mapset.Set[Interface]

	// Each target interface's "is this interface used" auxiliary
	// variable, allocated on first need.
	usedVars map[Interface]sat.Lit
}

// BuildProblem builds the SAT instance for req against provider. When
// diagnostic is true, every interface gets an extra dummy candidate that
// trivially satisfies any dependency, so that RunSolver always succeeds
// and [sat.Engine.ExplainReason] can be asked why the real candidates
// lost out.
func BuildProblem(ctx context.Context, provider ImplProvider, req Requirements, diagnostic bool) (*Problem, error) {
	b := &ProblemBuilder{
		ctx:        ctx,
		engine:     sat.NewEngine(),
		provider:   provider,
		req:        req,
		diagnostic: diagnostic,
		ifaces:     newCandidateCache[Interface, ifaceEntry](),
		commands:   newCandidateCache[commandKey, cmdEntry](),
		groups:     map[string]sat.Lit{},
		replaced:   mapset.NewThreadUnsafeSet[Interface](),
		usedVars:   map[Interface]sat.Lit{},
	}

	slog.DebugContext(ctx, "building problem", "root", req.Interface, "command", req.Command, "diagnostic", diagnostic)

	root := b.addInterface(req.Interface)
	if root.err != nil {
		return nil, root.err
	}

	rootReq := Requirement{Interface: root.iface}
	if req.Command == "" {
		b.engine.AtLeastOne(root.handle.Lits(), fmt.Sprintf("need an implementation of %s", root.iface))
	} else {
		rootReq.Command = req.Command
		group := b.addCommand(root.iface, req.Command)
		b.engine.AtLeastOne(group.lits(), fmt.Sprintf("need command %q of %s", req.Command, root.iface))
	}

	if len(b.groupOrder) > 1 {
		groupLits := itertools.Map(slices.Values(b.groupOrder), func(g string) sat.Lit { return b.groups[g] })
		b.engine.AtMostOne(slices.Collect(groupLits))
	}

	b.resolveReplacementConflicts()

	return &Problem{
		Engine:     b.engine,
		RootReq:    rootReq,
		Ifaces:     b.ifaces,
		Commands:   b.commands,
		Diagnostic: diagnostic,
		Provider:   provider,
	}, nil
}

func (b *ProblemBuilder) implAllowed(iface Interface, impl *Implementation) bool {
	if impl.OS != "" && b.req.OS != "" && impl.OS != b.req.OS {
		return false
	}
	if impl.Machine != "" && b.req.Machine != "" && impl.Machine != b.req.Machine {
		return false
	}
	for _, r := range b.req.ExtraRestrictions[iface] {
		if !r.MeetsRestriction(impl) {
			return false
		}
	}
	return true
}

// machineGroupKey buckets impl's machine tag: 64-bit CPU architectures go
// in "m64", everything else in "mDef". Tag-less implementations and
// source packages ("src") belong to neither group.
func machineGroupKey(impl *Implementation) string {
	if impl.Machine == "" || impl.Machine == "src" {
		return ""
	}
	if strings.Contains(impl.Machine, "64") {
		return "m64"
	}
	return "mDef"
}

func (b *ProblemBuilder) requireGroup(lit sat.Lit, group string) {
	g, ok := b.groups[group]
	if !ok {
		g = b.engine.AddVariable(machineGroupLabel(group))
		b.groups[group] = g
		b.groupOrder = append(b.groupOrder, group)
	}
	b.engine.Implies(lit, []sat.Lit{g}, fmt.Sprintf("selecting a %s implementation commits the whole solution to that machine group", group))
}

// addInterface returns the cached entry for iface, discovering its
// candidates on first sight. A <replaced-by> target is recorded for
// [ProblemBuilder.resolveReplacementConflicts]; it does not alias iface's
// own candidates away.
func (b *ProblemBuilder) addInterface(iface Interface) *ifaceEntry {
	return b.ifaces.Lookup(iface, func(entry *ifaceEntry) {
		entry.iface = iface
		replacement, impls, err := b.provider.GetImplementations(iface)
		if err != nil {
			entry.err = fmt.Errorf("fetching implementations of %s: %w", iface, err)
			return
		}
		if replacement != nil && *replacement == iface {
			slog.WarnContext(b.ctx, "interface names itself as its own replacement; ignoring", "interface", iface)
			replacement = nil
		}
		if replacement != nil {
			entry.replacement = replacement
			b.replaced.Add(iface)
		}
		if b.diagnostic {
			impls = append(impls, dummyImplementation(iface))
		}

		allowed := make([]*Implementation, 0, len(impls))
		for _, impl := range impls {
			if impl.IsDummy() || b.implAllowed(iface, impl) {
				allowed = append(allowed, impl)
			}
		}
		coalesced := b.coalescedSources(allowed)
		entry.impls = allowed
		entry.implLits = make(map[*Implementation]sat.Lit, len(allowed))
		lits := make([]sat.Lit, 0, len(allowed))
		for _, impl := range allowed {
			lit := b.engine.AddVariable(implLabel(impl))
			entry.implLits[impl] = lit
			if !coalesced[impl] {
				lits = append(lits, lit)
			}
			if group := machineGroupKey(impl); group != "" {
				b.requireGroup(lit, group)
			}
		}
		entry.handle = b.engine.AtMostOne(lits)
		slog.Log(b.ctx, logging.LevelTrace, "materialised interface", "interface", iface,
			"candidates", slices.Collect(itertools.Stringify(slices.Values(allowed))), "replacement", replacement)

		for _, impl := range allowed {
			b.constrainCompilation(entry, impl)
		}
		for _, impl := range allowed {
			implLit := entry.implLits[impl]
			b.processDependencies(implLit, impl.String(), impl.Dependencies)
			for _, binding := range impl.SelfBindings {
				b.checkSelfBinding(implLit, iface, impl.String(), binding)
			}
		}
	})
}

// resolveReplacementConflicts runs after the graph walk: for every
// interface that named a <replaced-by> target, if the target was also
// materialised and both sides have a non-dummy candidate, only one side
// may contribute a real selection.
func (b *ProblemBuilder) resolveReplacementConflicts() {
	ifaces := b.replaced.ToSlice()
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i] < ifaces[j] })
	for _, iface := range ifaces {
		entry, ok := b.ifaces.Get(iface)
		if !ok || entry.replacement == nil {
			continue
		}
		target, ok := b.ifaces.Get(*entry.replacement)
		if !ok {
			continue
		}
		srcLits := entry.nonDummyLits()
		dstLits := target.nonDummyLits()
		if len(srcLits) == 0 || len(dstLits) == 0 {
			continue
		}
		slog.Log(b.ctx, logging.LevelVerbose, "resolving replacement conflict", "interface", iface, "replacement", *entry.replacement)
		union := make([]sat.Lit, 0, len(srcLits)+len(dstLits))
		union = append(union, srcLits...)
		union = append(union, dstLits...)
		b.engine.AtMostOne(union)
	}
}

// coalescedSources reports which of allowed are redundant as independent
// alternatives: an immediate candidate that is also the forced source of
// a requires-compilation candidate with the same identifier is reachable
// by compiling, so it is dropped from the interface's competing
// at-most-one set. It still gets a SAT variable so that
// [ProblemBuilder.constrainCompilation]'s implication can name it.
func (b *ProblemBuilder) coalescedSources(allowed []*Implementation) map[*Implementation]bool {
	coalesced := map[*Implementation]bool{}
	for _, impl := range allowed {
		src, needsCompile := impl.Mode.Source()
		if !needsCompile {
			continue
		}
		companion, err := src.Force()
		if err != nil || companion == nil || companion == impl || companion.ID != impl.ID {
			continue
		}
		for _, cand := range allowed {
			if cand == companion {
				coalesced[cand] = true
				break
			}
		}
	}
	return coalesced
}

// constrainCompilation links a compiled candidate to the source candidate
// its [LazySource] resolves to. A companion the provider never listed as
// a candidate of the interface gets its variable allocated here; it is
// never added to the competing set. If the source impl exports a
// "compile" command, selecting the compiled candidate also forces that
// command.
func (b *ProblemBuilder) constrainCompilation(entry *ifaceEntry, impl *Implementation) {
	src, needsCompile := impl.Mode.Source()
	if !needsCompile {
		return
	}
	implLit := entry.implLits[impl]
	companion, err := src.Force()
	if err != nil {
		b.engine.AtLeastOne([]sat.Lit{sat.Neg(implLit)},
			fmt.Sprintf("%s requires compilation but its source could not be resolved: %v", impl, err))
		return
	}
	companionLit, ok := entry.implLits[companion]
	if !ok {
		companionLit = b.engine.AddVariable(implLabel(companion))
		entry.implLits[companion] = companionLit
		entry.impls = append(entry.impls, companion)
		b.processDependencies(companionLit, companion.String(), companion.Dependencies)
		for _, binding := range companion.SelfBindings {
			b.checkSelfBinding(companionLit, entry.iface, companion.String(), binding)
		}
	}
	b.engine.Implies(implLit, []sat.Lit{companionLit}, fmt.Sprintf("%s must be compiled from %s", impl, companion))

	if _, ok := companion.Commands["compile"]; ok {
		group := b.addCommand(entry.iface, "compile")
		if lit, ok := group.litFor(companion); ok {
			b.engine.Implies(implLit, []sat.Lit{lit}, fmt.Sprintf("compiling %s requires %s's compile command", impl, companion))
		}
	}
}

// checkSelfBinding processes one self-binding of an implementation or
// command. A binding that names a command makes ownerLit imply that
// command's candidate set.
func (b *ProblemBuilder) checkSelfBinding(ownerLit sat.Lit, iface Interface, ownerDesc string, binding *Binding) {
	if binding.TargetCommand == nil {
		return
	}
	group := b.addCommand(iface, *binding.TargetCommand)
	if group.err != nil {
		b.engine.AtLeastOne([]sat.Lit{sat.Neg(ownerLit)},
			fmt.Sprintf("%s's binding expects command %q, which %s does not export", ownerDesc, *binding.TargetCommand, iface))
		return
	}
	b.engine.Implies(ownerLit, group.lits(), fmt.Sprintf("%s's binding requires command %q of %s", ownerDesc, *binding.TargetCommand, iface))
}

// addCommand returns the cached (command, interface) candidate set,
// discovering its member implementations on first sight. It is only
// reached from a dependency's required commands, a self-binding's target
// command, the root requirement, or a compiled candidate's source
// "compile" command.
func (b *ProblemBuilder) addCommand(iface Interface, name CommandName) *cmdEntry {
	return b.commands.Lookup(commandKey{name: name, iface: iface}, func(entry *cmdEntry) {
		entry.name = name
		entry.iface = iface
		ifaceEntry := b.addInterface(iface)
		if ifaceEntry.err != nil {
			entry.err = ifaceEntry.err
			return
		}

		var cands []*commandCandidate
		for _, impl := range ifaceEntry.impls {
			cmd, ok := impl.Commands[name]
			if !ok && impl.IsDummy() {
				// The dummy impl offers every command; synthesize one on
				// first request. impl.Commands is a fresh map per dummy
				// instance, so caching it there is safe.
				cmd = &Command{Name: name}
				impl.Commands[name] = cmd
				ok = true
			}
			if !ok {
				continue
			}
			cands = append(cands, &commandCandidate{impl: impl, cmd: cmd, implLit: ifaceEntry.implLits[impl]})
		}
		if len(cands) == 0 {
			entry.err = fmt.Errorf("%s has no command %q", iface, name)
			return
		}

		lits := make([]sat.Lit, len(cands))
		for i, cand := range cands {
			cand.lit = b.engine.AddVariable(commandLabel(cand.cmd))
			lits[i] = cand.lit
		}
		entry.cands = cands
		entry.handle = b.engine.AtMostOne(lits)

		for _, cand := range cands {
			b.engine.Implies(cand.lit, []sat.Lit{cand.implLit}, fmt.Sprintf("command %q only makes sense if %s is selected", name, cand.impl))
			b.processDependencies(cand.lit, fmt.Sprintf("%s's %q command", cand.impl, name), cand.cmd.Dependencies)
			for _, binding := range cand.cmd.Bindings {
				b.checkSelfBinding(cand.lit, iface, fmt.Sprintf("%s's %q command", cand.impl, name), binding)
			}
		}
	})
}

// processDependencies emits the clauses for one owner's dependency list.
// antecedent is the SAT variable that must be true for these dependencies
// to apply.
func (b *ProblemBuilder) processDependencies(antecedent sat.Lit, ownerDesc string, deps []*Dependency) {
	for _, dep := range deps {
		if !b.provider.IsDepNeeded(dep) {
			continue
		}
		target := b.addInterface(dep.Target)
		if target.err != nil {
			continue
		}
		pass, fail := b.partitionCandidates(target, dep)

		switch dep.Importance {
		case Essential:
			b.engine.Implies(antecedent, pass, fmt.Sprintf("%s requires %s", ownerDesc, dep.Target))
			b.requireCommands(antecedent, nil, ownerDesc, dep, target)
		case Recommended:
			// The owner may be selected even if target ends up unused; it
			// only must not coexist with a failing candidate.
			b.excludeFailing(antecedent, fail, ownerDesc, dep.Target)
			usedVar := b.interfaceUsedVar(target, pass)
			b.requireCommands(antecedent, &usedVar, ownerDesc, dep, target)
		case Restricts:
			// Version-only constraint; no command or selection obligations.
			b.excludeFailing(antecedent, fail, ownerDesc, dep.Target)
		}
	}
}

// partitionCandidates splits target's candidates into those that meet
// every one of dep's restrictions and those that don't. The dummy
// implementation always passes.
func (b *ProblemBuilder) partitionCandidates(target *ifaceEntry, dep *Dependency) (pass, fail []sat.Lit) {
	for _, impl := range target.impls {
		lit := target.implLits[impl]
		if impl.IsDummy() {
			pass = append(pass, lit)
			continue
		}
		ok := true
		for _, r := range dep.Restrictions {
			if !r.MeetsRestriction(impl) {
				ok = false
				break
			}
		}
		if ok {
			pass = append(pass, lit)
		} else {
			fail = append(fail, lit)
		}
	}
	return pass, fail
}

// excludeFailing asserts, for each failing candidate, that antecedent
// forbids it.
func (b *ProblemBuilder) excludeFailing(antecedent sat.Lit, fail []sat.Lit, ownerDesc string, target Interface) {
	for _, failLit := range fail {
		b.engine.Implies(antecedent, []sat.Lit{sat.Neg(failLit)},
			fmt.Sprintf("%s must not coexist with a candidate of %s that fails its restrictions", ownerDesc, target))
	}
}

// interfaceUsedVar returns target's "is this interface used" auxiliary
// variable, shared across every recommended dependency on target. Each
// call emits the clause making any of this dependency's passing
// candidates force the variable; the variable itself is allocated once.
func (b *ProblemBuilder) interfaceUsedVar(target *ifaceEntry, pass []sat.Lit) sat.Lit {
	lit, ok := b.usedVars[target.iface]
	if !ok {
		lit = b.engine.AddVariable(interfaceUsedLabel(target.iface))
		b.usedVars[target.iface] = lit
	}
	clauseLits := make([]sat.Lit, 0, len(pass)+1)
	clauseLits = append(clauseLits, sat.Neg(lit))
	clauseLits = append(clauseLits, pass...)
	b.engine.AtMostOne(clauseLits)
	return lit
}

// requireCommands emits dep's required-command obligations. With a nil
// usedVar (essential), selecting antecedent forces one of the target's
// command candidates outright; otherwise the implication is gated on the
// target interface being used at all.
func (b *ProblemBuilder) requireCommands(antecedent sat.Lit, usedVar *sat.Lit, ownerDesc string, dep *Dependency, target *ifaceEntry) {
	for _, cmdName := range dep.RequiredCommands {
		group := b.addCommand(target.iface, cmdName)
		cmdLits := group.lits()
		reason := fmt.Sprintf("%s requires command %q of %s", ownerDesc, cmdName, dep.Target)
		lits := cmdLits
		if usedVar != nil {
			lits = make([]sat.Lit, 0, len(cmdLits)+1)
			lits = append(lits, sat.Neg(*usedVar))
			lits = append(lits, cmdLits...)
		}
		b.engine.Implies(antecedent, lits, reason)
	}
}

func dummyImplementation(iface Interface) *Implementation {
	return &Implementation{
		ID:       "dummy",
		Version:  DummyVersion,
		Mode:     Immediate(),
		Attrs:    map[string]string{"local-path": "/dummy"},
		Commands: map[CommandName]*Command{},
	}
}
