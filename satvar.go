package compselect

import "fmt"

// varLabelKind discriminates the closed set of things a SAT variable can
// stand for in this solver. Every variable the [ProblemBuilder] allocates
// carries one of these as its [sat.Engine] payload, retrievable via
// GetUserDataForLit for diagnostics and result assembly.
type varLabelKind int

const (
	labelImpl varLabelKind = iota
	labelCommand
	labelMachineGroup
	labelInterface
)

// A varLabel names what a single SAT variable decides: "is this
// implementation selected", "is this command selected", "has this
// machine group been committed to", or (for a recommended dependency's
// target) "is this interface used at all".
type varLabel struct {
	kind    varLabelKind
	impl    *Implementation
	command *Command
	iface   Interface
	group   string
}

func implLabel(impl *Implementation) varLabel {
	return varLabel{kind: labelImpl, impl: impl}
}

func commandLabel(cmd *Command) varLabel {
	return varLabel{kind: labelCommand, command: cmd}
}

func machineGroupLabel(group string) varLabel {
	return varLabel{kind: labelMachineGroup, group: group}
}

func interfaceUsedLabel(iface Interface) varLabel {
	return varLabel{kind: labelInterface, iface: iface}
}

func (l varLabel) String() string {
	switch l.kind {
	case labelImpl:
		return "impl:" + l.impl.String()
	case labelCommand:
		return "command:" + string(l.command.Name)
	case labelMachineGroup:
		return "machine-group:" + l.group
	case labelInterface:
		return "interface:" + string(l.iface)
	default:
		return fmt.Sprintf("varLabel(%d)", int(l.kind))
	}
}

// asVarLabel recovers a varLabel from an [sat.Engine] payload, panicking
// if the engine handed back something this module never put in.
func asVarLabel(payload any) varLabel {
	l, ok := payload.(varLabel)
	if !ok {
		panic(fmt.Sprintf("compselect: sat engine payload is %T, not varLabel", payload))
	}
	return l
}
