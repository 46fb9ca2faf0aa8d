package compselect

import "fmt"

// Importance classifies how strongly a [Dependency] binds its user.
type Importance int

const (
	// Essential dependencies must be satisfied by a compatible selection
	// whenever their owner is selected.
	Essential Importance = iota
	// Restricts dependencies contribute only a version/arch restriction
	// on an interface that might be selected for other reasons; they
	// never force a selection and never require a command.
	Restricts
	// Recommended dependencies are satisfied "if convenient": the owner
	// may be selected even if the target interface ends up unused, but
	// if it is used, it must be satisfied by a compatible candidate.
	Recommended
)

func (i Importance) String() string {
	switch i {
	case Essential:
		return "essential"
	case Restricts:
		return "restricts"
	case Recommended:
		return "recommended"
	default:
		return fmt.Sprintf("Importance(%d)", int(i))
	}
}

// A Restriction narrows which implementations of a dependency's target
// interface are acceptable. Restrictions are supplied and evaluated by
// the external feed/provider layer.
type Restriction interface {
	// MeetsRestriction reports whether impl satisfies this restriction.
	MeetsRestriction(impl *Implementation) bool
}

// A Dependency is a directed link from an implementation or command to
// a target [Interface].
type Dependency struct {
	Target           Interface
	Importance       Importance
	Restrictions     []Restriction
	RequiredCommands []CommandName
	Element          Element // the underlying node, copied into selections verbatim
}

// A Binding is an environmental injection a user of a selection must
// apply. TargetCommand is non-nil when the binding names a command that
// must exist within the same implementation it is attached to (a
// "self-binding" per the owning implementation or command).
type Binding struct {
	Element       Element
	TargetCommand *CommandName
}

// A Command is a named invocation entry point exported by an
// [Implementation].
type Command struct {
	Name         CommandName
	Element      Element
	Dependencies []*Dependency
	Bindings     []*Binding
}

// implModeKind distinguishes the two ways an implementation may be
// consumed.
type implModeKind int

const (
	modeImmediate implModeKind = iota
	modeRequiresCompilation
)

// An ImplMode is either Immediate (the implementation is directly
// usable) or RequiresCompilation, in which case [ImplMode.Source]
// returns a lazily-forced reference to the companion source
// implementation that must be compiled to produce it.
type ImplMode struct {
	kind   implModeKind
	source *LazySource
}

// Immediate returns the mode of an implementation usable as-is.
func Immediate() ImplMode { return ImplMode{kind: modeImmediate} }

// RequiresCompilation returns the mode of a compiled implementation
// whose companion source implementation is resolved lazily via src.
func RequiresCompilation(src *LazySource) ImplMode {
	return ImplMode{kind: modeRequiresCompilation, source: src}
}

// IsImmediate reports whether m is the immediate mode.
func (m ImplMode) IsImmediate() bool { return m.kind == modeImmediate }

// Source returns the companion source implementation reference and true
// if m requires compilation, or (nil, false) if m is immediate.
func (m ImplMode) Source() (*LazySource, bool) {
	if m.kind != modeRequiresCompilation {
		return nil, false
	}
	return m.source, true
}

// A LazySource memoizes the single evaluation of a companion source
// implementation reference. Forcing it more than once returns the same
// result without re-invoking resolve.
type LazySource struct {
	resolve func() (*Implementation, error)
	forced  bool
	impl    *Implementation
	err     error
}

// NewLazySource wraps resolve so that [LazySource.Force] evaluates it at
// most once.
func NewLazySource(resolve func() (*Implementation, error)) *LazySource {
	return &LazySource{resolve: resolve}
}

// Force returns the companion source implementation, evaluating resolve
// on the first call and memoizing the result (or error) thereafter.
func (l *LazySource) Force() (*Implementation, error) {
	if !l.forced {
		l.impl, l.err = l.resolve()
		l.forced = true
	}
	return l.impl, l.err
}

// An Implementation is a concrete, installable version of an interface,
// as ranked and filtered by the external provider.
type Implementation struct {
	// ID is the implementation's own identifier. Two candidates with the
	// same ID for the same interface are the immediate/compiled pair of
	// one underlying release.
	ID      string
	Version Version
	OS      string // empty means "any OS"
	Machine string // empty means "any machine"

	Attrs        map[string]string
	Dependencies []*Dependency
	Commands     map[CommandName]*Command
	SelfBindings []*Binding
	Mode         ImplMode

	Element Element
}

func (impl *Implementation) String() string {
	return fmt.Sprintf("%s@%s", impl.ID, impl.Version)
}

// IsDummy reports whether impl is the sentinel dummy implementation
// added by diagnostic-mode solving.
func (impl *Implementation) IsDummy() bool {
	return impl != nil && impl.Version == DummyVersion
}
