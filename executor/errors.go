package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casualjim/reagent/nodetype"
)

// ErrRunCancelled is the cancellation cause of runs cancelled with Run.Cancel.
var ErrRunCancelled = errors.New("run cancelled")

// NodeFailedError wraps the error a node's computation returned.
type NodeFailedError struct {
	Node string
	Err  error
}

func (e *NodeFailedError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

func (e *NodeFailedError) Unwrap() error {
	return e.Err
}

// UpstreamFailedError is the reason a node never ran: a node it depends on,
// directly or transitively, failed.
type UpstreamFailedError struct {
	Node     string
	Upstream string
	Err      error
}

func (e *UpstreamFailedError) Error() string {
	return fmt.Sprintf("node %q did not run: upstream %q failed", e.Node, e.Upstream)
}

func (e *UpstreamFailedError) Unwrap() error {
	return e.Err
}

// IncompleteOutputError is returned for a node that finished without a
// terminal value on every declared output.
type IncompleteOutputError struct {
	Node  string
	Slots []string
}

func (e *IncompleteOutputError) Error() string {
	return fmt.Sprintf("node %q finished without completing outputs: %s", e.Node, strings.Join(e.Slots, ", "))
}

// ValueTypeError is returned when a node publishes a value its output slot
// does not accept.
type ValueTypeError struct {
	Node  string
	Slot  string
	Want  nodetype.ValueType
	Value any
}

func (e *ValueTypeError) Error() string {
	return fmt.Sprintf("node %q: output %s expects %s, got %T", e.Node, e.Slot, e.Want, e.Value)
}

// SlotError is returned when a node addresses a slot it does not have or uses
// it in a way the slot does not support.
type SlotError struct {
	Node   string
	Slot   string
	Reason string
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("node %q: slot %s: %s", e.Node, e.Slot, e.Reason)
}
