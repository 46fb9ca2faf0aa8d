// Package fakeprovider makes it easy to build a deterministic, in-memory
// [compselect.ImplProvider] and a matching [compselect.Element] fake,
// populated with fake implementations, for tests and for the CLI's
// scenario-file mode (see internal/scenario).
package fakeprovider

import "compselect"

// An Element is a minimal, immutable [compselect.Element] fake: just
// enough of a tree to exercise result assembly's attribute filtering and
// child-copying without any real XML parsing.
type Element struct {
	name     string
	attrs    map[string]string
	children []compselect.Element
}

// NewElement returns a fake element named name with the given
// attributes (may be nil) and children.
func NewElement(name string, attrs map[string]string, children ...compselect.Element) *Element {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Element{name: name, attrs: attrs, children: children}
}

func (e *Element) Name() string                  { return e.name }
func (e *Element) Attrs() map[string]string       { return e.attrs }
func (e *Element) Children() []compselect.Element { return e.children }

// WithChildren returns a shallow copy of e with its children replaced.
func (e *Element) WithChildren(children []compselect.Element) compselect.Element {
	cp := *e
	cp.children = children
	return &cp
}

// An ImplOption configures a fake implementation built by [NewImpl].
type ImplOption func(*compselect.Implementation)

// OS sets the implementation's OS tag.
func OS(os string) ImplOption {
	return func(impl *compselect.Implementation) { impl.OS = os }
}

// Machine sets the implementation's CPU/machine tag.
func Machine(machine string) ImplOption {
	return func(impl *compselect.Implementation) { impl.Machine = machine }
}

// Attr sets one attribute on the implementation's attribute map.
func Attr(key, value string) ImplOption {
	return func(impl *compselect.Implementation) { impl.Attrs[key] = value }
}

// Deps appends dependencies to the implementation.
func Deps(deps ...*compselect.Dependency) ImplOption {
	return func(impl *compselect.Implementation) { impl.Dependencies = append(impl.Dependencies, deps...) }
}

// Commands attaches commands to the implementation, keyed by their own name.
func Commands(cmds ...*compselect.Command) ImplOption {
	return func(impl *compselect.Implementation) {
		for _, cmd := range cmds {
			impl.Commands[cmd.Name] = cmd
		}
	}
}

// SelfBindings appends self-bindings to the implementation.
func SelfBindings(bindings ...*compselect.Binding) ImplOption {
	return func(impl *compselect.Implementation) { impl.SelfBindings = append(impl.SelfBindings, bindings...) }
}

// RequiresCompilation marks the implementation as needing compilation
// from the given source implementation.
func RequiresCompilation(source *compselect.Implementation) ImplOption {
	return func(impl *compselect.Implementation) {
		impl.Mode = compselect.RequiresCompilation(compselect.NewLazySource(func() (*compselect.Implementation, error) {
			return source, nil
		}))
	}
}

// WithElement attaches a fake Element to the implementation, so result
// assembly has something to filter and copy children onto.
func WithElement(attrs map[string]string) ImplOption {
	return func(impl *compselect.Implementation) {
		impl.Element = NewElement("implementation", attrs)
	}
}

// NewImpl builds a fake implementation. The provider keys candidates by
// interface externally; an implementation record never names its own
// interface.
func NewImpl(id string, version compselect.Version, opts ...ImplOption) *compselect.Implementation {
	impl := &compselect.Implementation{
		ID:       id,
		Version:  version,
		Attrs:    map[string]string{},
		Commands: map[compselect.CommandName]*compselect.Command{},
		Mode:     compselect.Immediate(),
	}
	for _, opt := range opts {
		opt(impl)
	}
	if impl.Element == nil {
		impl.Element = NewElement("implementation", map[string]string{"id": id, "version": string(version)})
	}
	return impl
}

// NewCommand builds a fake command named name.
func NewCommand(name compselect.CommandName, deps []*compselect.Dependency, bindings ...*compselect.Binding) *compselect.Command {
	return &compselect.Command{
		Name:         name,
		Element:      NewElement("command", map[string]string{"name": string(name)}),
		Dependencies: deps,
		Bindings:     bindings,
	}
}

// NewDependency builds a fake essential/recommended/restricting
// dependency on target.
func NewDependency(target compselect.Interface, importance compselect.Importance, opts ...DepOption) *compselect.Dependency {
	dep := &compselect.Dependency{
		Target:     target,
		Importance: importance,
		Element:    NewElement("requires", map[string]string{"interface": string(target)}),
	}
	for _, opt := range opts {
		opt(dep)
	}
	return dep
}

// A DepOption configures a fake dependency built by [NewDependency].
type DepOption func(*compselect.Dependency)

// Restriction attaches a restriction to the dependency.
func Restriction(r compselect.Restriction) DepOption {
	return func(dep *compselect.Dependency) { dep.Restrictions = append(dep.Restrictions, r) }
}

// RequireCommand adds a required command name to the dependency.
func RequireCommand(name compselect.CommandName) DepOption {
	return func(dep *compselect.Dependency) { dep.RequiredCommands = append(dep.RequiredCommands, name) }
}

// NewBinding builds a fake binding, optionally naming a sibling command
// it expects to exist in the same implementation (a self-binding
// target).
func NewBinding(targetCommand compselect.CommandName) *compselect.Binding {
	b := &compselect.Binding{Element: NewElement("binding", nil)}
	if targetCommand != "" {
		b.TargetCommand = &targetCommand
	}
	return b
}

// MinVersion is a trivial [compselect.Restriction] fixture: it accepts
// any implementation whose version compares >= Min lexicographically.
type MinVersion struct {
	Min compselect.Version
}

func (r MinVersion) MeetsRestriction(impl *compselect.Implementation) bool {
	if impl.IsDummy() {
		return true
	}
	return compselect.VersionCompare(impl.Version, r.Min) >= 0
}

// A Provider is a deterministic, in-memory [compselect.ImplProvider]
// fixture: interfaces and their candidate implementations are recorded
// up front (in the order callers want the solver to prefer them), and
// GetImplementations simply replays that order back.
type Provider struct {
	impls        map[compselect.Interface][]*compselect.Implementation
	replacements map[compselect.Interface]compselect.Interface
	depsNeeded   func(*compselect.Dependency) bool
}

// NewProvider returns an empty Provider. By default every dependency is
// needed; override with [WithDepFilter].
func NewProvider() *Provider {
	return &Provider{
		impls:        map[compselect.Interface][]*compselect.Implementation{},
		replacements: map[compselect.Interface]compselect.Interface{},
		depsNeeded:   func(*compselect.Dependency) bool { return true },
	}
}

// Add registers impls, in order, as the candidates offered for iface.
// Calling Add again for the same interface appends further candidates.
func (p *Provider) Add(iface compselect.Interface, impls ...*compselect.Implementation) *Provider {
	p.impls[iface] = append(p.impls[iface], impls...)
	return p
}

// Replace records that iface has been superseded by replacement.
func (p *Provider) Replace(iface, replacement compselect.Interface) *Provider {
	p.replacements[iface] = replacement
	return p
}

// WithDepFilter overrides IsDepNeeded's default "always needed" answer.
func (p *Provider) WithDepFilter(f func(*compselect.Dependency) bool) *Provider {
	p.depsNeeded = f
	return p
}

// GetImplementations implements [compselect.ImplProvider]. An interface
// that was never [Provider.Add]ed has no candidates; that is not an
// error, the solver turns it into an unsatisfiable root or an unmet
// dependency.
func (p *Provider) GetImplementations(iface compselect.Interface) (*compselect.Interface, []*compselect.Implementation, error) {
	var replacement *compselect.Interface
	if r, ok := p.replacements[iface]; ok {
		replacement = &r
	}
	impls := p.impls[iface]
	return replacement, append([]*compselect.Implementation(nil), impls...), nil
}

// IsDepNeeded implements [compselect.ImplProvider].
func (p *Provider) IsDepNeeded(dep *compselect.Dependency) bool {
	return p.depsNeeded(dep)
}
