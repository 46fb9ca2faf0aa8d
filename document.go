package compselect

import "sort"

// genericElement is this module's own minimal [Element] implementation,
// used only for the nodes result assembly synthesizes itself: the root
// "selections" wrapper and each interface's "selection" node. Every
// other node in a produced document is a provider-supplied [Element].
type genericElement struct {
	name     string
	attrs    map[string]string
	children []Element
}

func newElement(name string, attrs map[string]string, children []Element) *genericElement {
	return &genericElement{name: name, attrs: attrs, children: children}
}

func (e *genericElement) Name() string             { return e.name }
func (e *genericElement) Attrs() map[string]string { return e.attrs }
func (e *genericElement) Children() []Element      { return e.children }

func (e *genericElement) WithChildren(children []Element) Element {
	cp := *e
	cp.children = children
	return &cp
}

// selectionAttrs builds one <selection> node's attributes: start from
// the implementation's own attributes, drop bookkeeping keys, drop
// stability/main/self-test, set interface, and drop from-feed if it
// merely repeats interface.
func selectionAttrs(sel *Selection) map[string]string {
	attrs := sel.FilteredAttrs()
	delete(attrs, "stability")
	delete(attrs, "main")
	delete(attrs, "self-test")
	attrs["interface"] = string(sel.Interface)
	if attrs["from-feed"] == string(sel.Interface) {
		delete(attrs, "from-feed")
	}
	return attrs
}

// selectionElement builds the <selection> node for sel. The dummy
// implementation contributes no command/binding/dependency detail
// beyond its bare attributes.
func selectionElement(sel *Selection) Element {
	var children []Element
	if sel.Element != nil {
		children = sel.Element.Children()
	}
	return newElement("selection", selectionAttrs(sel), children)
}

// GetSelections assembles the selections document: a root "selections"
// element carrying the root requirement, with one child "selection"
// element per participating interface in ascending lexicographic order,
// plus a second, parallel "selection" for any implementation that
// required compilation. The root's own interface/command attributes
// always name the root requirement, even in a closest-match result
// where the root itself may have resolved to the dummy implementation.
func (r *Result) GetSelections() Element {
	sels := r.Selections()
	sort.Slice(sels, func(i, j int) bool { return sels[i].Interface < sels[j].Interface })

	var children []Element
	for _, sel := range sels {
		children = append(children, selectionElement(sel))
		if sel.CompiledFrom != nil {
			children = append(children, selectionElement(sel.CompiledFrom))
		}
	}

	root := r.Problem.RootReq
	attrs := map[string]string{"interface": string(root.Interface)}
	if root.IsCommand() {
		attrs["command"] = string(root.Command)
	}
	return newElement("selections", attrs, children)
}
