// Package scenario decodes a JSON description of a fixed implementation
// catalogue into a [fakeprovider.Provider] and a root [compselect.Requirements]
// value, so the CLI can drive [compselect.SolveFor] end to end without any
// real feed parsing or network fetching, both of which are out of scope for
// the solver this module implements (see the package doc of compselect).
package scenario

import (
	"encoding/json"
	"fmt"
	"io"

	"compselect"
	fp "compselect/internal/test/fakeprovider"
)

// A Document is the top-level shape of a scenario file.
type Document struct {
	Root       RootSpec                  `json:"root"`
	OS         string                    `json:"os"`
	Machine    string                    `json:"machine"`
	Source     bool                      `json:"source"`
	Interfaces map[string]InterfaceSpec `json:"interfaces"`
}

// RootSpec names what the driver should solve for.
type RootSpec struct {
	Interface string `json:"interface"`
	Command   string `json:"command"`
}

// InterfaceSpec is one interface's entry in a scenario file.
type InterfaceSpec struct {
	Replacement     string                   `json:"replacement"`
	Implementations []ImplementationSpec `json:"implementations"`
}

// ImplementationSpec is one candidate implementation.
type ImplementationSpec struct {
	ID                      string             `json:"id"`
	Version                 string             `json:"version"`
	OS                      string             `json:"os"`
	Machine                 string             `json:"machine"`
	Attrs                   map[string]string  `json:"attrs"`
	Dependencies            []DependencySpec   `json:"dependencies"`
	Commands                map[string]CommandSpec `json:"commands"`
	SelfBindings            []BindingSpec      `json:"selfBindings"`
	RequiresCompilationFrom string             `json:"requiresCompilationFrom"`
}

// DependencySpec is one dependency of an implementation or command.
type DependencySpec struct {
	Target           string   `json:"target"`
	Importance       string   `json:"importance"` // "essential" (default), "recommended", "restricts"
	MinVersion       string   `json:"minVersion"`
	RequiredCommands []string `json:"requiredCommands"`
}

// CommandSpec is one command a scenario implementation exports.
type CommandSpec struct {
	Dependencies []DependencySpec `json:"dependencies"`
	Bindings     []BindingSpec    `json:"bindings"`
}

// BindingSpec is a self-binding, optionally naming a sibling command.
type BindingSpec struct {
	TargetCommand string `json:"targetCommand"`
}

// Load decodes a scenario document from r and builds the provider and
// root requirements it describes.
func Load(r io.Reader) (*fp.Provider, compselect.Requirements, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, compselect.Requirements{}, fmt.Errorf("scenario: decoding JSON: %w", err)
	}
	provider, err := doc.build()
	if err != nil {
		return nil, compselect.Requirements{}, err
	}
	req := compselect.Requirements{
		Interface: compselect.Interface(doc.Root.Interface),
		Command:   compselect.CommandName(doc.Root.Command),
		OS:        doc.OS,
		Machine:   doc.Machine,
		Source:    doc.Source,
	}
	return provider, req, nil
}

func (doc *Document) build() (*fp.Provider, error) {
	provider := fp.NewProvider()

	// implsByKey resolves "requiresCompilationFrom" references, which
	// name a sibling implementation id within the same interface.
	implsByKey := map[[2]string]*compselect.Implementation{}

	for iface, spec := range doc.Interfaces {
		impls := make([]*compselect.Implementation, 0, len(spec.Implementations))
		for _, implSpec := range spec.Implementations {
			impl := implSpec.build()
			impls = append(impls, impl)
			implsByKey[[2]string{iface, implSpec.ID}] = impl
		}
		provider.Add(compselect.Interface(iface), impls...)
		if spec.Replacement != "" {
			provider.Replace(compselect.Interface(iface), compselect.Interface(spec.Replacement))
		}
	}

	for iface, spec := range doc.Interfaces {
		for _, implSpec := range spec.Implementations {
			if implSpec.RequiresCompilationFrom == "" {
				continue
			}
			key := [2]string{iface, implSpec.RequiresCompilationFrom}
			source, ok := implsByKey[key]
			if !ok {
				return nil, fmt.Errorf("scenario: %s/%s: requiresCompilationFrom %q not found in the same interface",
					iface, implSpec.ID, implSpec.RequiresCompilationFrom)
			}
			impl := implsByKey[[2]string{iface, implSpec.ID}]
			impl.Mode = compselect.RequiresCompilation(compselect.NewLazySource(func() (*compselect.Implementation, error) {
				return source, nil
			}))
		}
	}

	return provider, nil
}

func (s *ImplementationSpec) build() *compselect.Implementation {
	opts := []fp.ImplOption{fp.WithElement(s.Attrs)}
	for k, v := range s.Attrs {
		opts = append(opts, fp.Attr(k, v))
	}
	if s.OS != "" {
		opts = append(opts, fp.OS(s.OS))
	}
	if s.Machine != "" {
		opts = append(opts, fp.Machine(s.Machine))
	}
	if len(s.Dependencies) > 0 {
		deps := make([]*compselect.Dependency, len(s.Dependencies))
		for i, d := range s.Dependencies {
			deps[i] = d.build()
		}
		opts = append(opts, fp.Deps(deps...))
	}
	if len(s.Commands) > 0 {
		cmds := make([]*compselect.Command, 0, len(s.Commands))
		for name, c := range s.Commands {
			cmds = append(cmds, c.build(compselect.CommandName(name)))
		}
		opts = append(opts, fp.Commands(cmds...))
	}
	if len(s.SelfBindings) > 0 {
		bindings := make([]*compselect.Binding, len(s.SelfBindings))
		for i, b := range s.SelfBindings {
			bindings[i] = b.build()
		}
		opts = append(opts, fp.SelfBindings(bindings...))
	}
	return fp.NewImpl(s.ID, compselect.Version(s.Version), opts...)
}

func (d *DependencySpec) build() *compselect.Dependency {
	opts := make([]fp.DepOption, 0, 2)
	if d.MinVersion != "" {
		opts = append(opts, fp.Restriction(fp.MinVersion{Min: compselect.Version(d.MinVersion)}))
	}
	for _, name := range d.RequiredCommands {
		opts = append(opts, fp.RequireCommand(compselect.CommandName(name)))
	}
	return fp.NewDependency(compselect.Interface(d.Target), d.importance(), opts...)
}

func (d *DependencySpec) importance() compselect.Importance {
	switch d.Importance {
	case "recommended":
		return compselect.Recommended
	case "restricts":
		return compselect.Restricts
	default:
		return compselect.Essential
	}
}

func (c *CommandSpec) build(name compselect.CommandName) *compselect.Command {
	deps := make([]*compselect.Dependency, len(c.Dependencies))
	for i, d := range c.Dependencies {
		deps[i] = d.build()
	}
	bindings := make([]*compselect.Binding, len(c.Bindings))
	for i, b := range c.Bindings {
		bindings[i] = b.build()
	}
	return fp.NewCommand(name, deps, bindings...)
}

func (b *BindingSpec) build() *compselect.Binding {
	return fp.NewBinding(compselect.CommandName(b.TargetCommand))
}
