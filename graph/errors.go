package graph

import (
	"fmt"
	"strings"

	"github.com/casualjim/reagent/nodetype"
)

// InvalidInstanceError is returned for an unusable instance id.
type InvalidInstanceError struct {
	Node   string
	Reason string
}

func (e *InvalidInstanceError) Error() string {
	return fmt.Sprintf("invalid node instance %q: %s", e.Node, e.Reason)
}

// DuplicateInstanceError is returned when an instance id is used twice in a
// builder.
type DuplicateInstanceError struct {
	Node string
}

func (e *DuplicateInstanceError) Error() string {
	return fmt.Sprintf("node instance %q already exists", e.Node)
}

// UnknownNodeError is returned when a lookup names a node that is not part
// of the graph.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node instance %q", e.Node)
}

// SlotDirection says which side of a node a slot belongs to.
type SlotDirection string

const (
	InputSlot  SlotDirection = "input"
	OutputSlot SlotDirection = "output"
)

// UnknownSlotError is returned when a binding names a slot the node type does
// not declare.
type UnknownSlotError struct {
	Node      string
	Type      string
	Slot      string
	Direction SlotDirection
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("node %q (%s) has no %s slot %q", e.Node, e.Type, e.Direction, e.Slot)
}

// TypeMismatchError is returned when a source can't feed an input slot.
type TypeMismatchError struct {
	Node   string
	Slot   string
	Source string
	Want   nodetype.ValueType
	Got    nodetype.ValueType
	Reason string
}

func (e *TypeMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot bind %s to %s.%s: %s", e.Source, e.Node, e.Slot, e.Reason)
	}
	return fmt.Sprintf("cannot bind %s (%s) to %s.%s (%s)", e.Source, e.Got, e.Node, e.Slot, e.Want)
}

// ForeignNodeError is returned when a handle or output reference from another
// builder is used.
type ForeignNodeError struct {
	Node string
}

func (e *ForeignNodeError) Error() string {
	return fmt.Sprintf("node %q belongs to a different graph builder", e.Node)
}

// UnresolvedBindingError lists the required input slots of a node that were
// never bound.
type UnresolvedBindingError struct {
	Node  string
	Slots []string
}

func (e *UnresolvedBindingError) Error() string {
	return fmt.Sprintf("node %q has unbound inputs: %s", e.Node, strings.Join(e.Slots, ", "))
}

// CyclicDependencyError is returned when bindings form a cycle. Members is
// the cycle through the smallest instance id involved, starting at that id
// and following the bindings from producer to consumer. Cycles holds one such
// cycle per strongly connected group of nodes.
type CyclicDependencyError struct {
	Members []string
	Cycles  [][]string
}

func (e *CyclicDependencyError) Error() string {
	path := append(append([]string(nil), e.Members...), e.Members[0])
	msg := "dependency cycle: " + strings.Join(path, " -> ")
	if len(e.Cycles) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Cycles)-1)
	}
	return msg
}
