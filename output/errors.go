package output

import (
	"errors"
	"fmt"

	"github.com/casualjim/reagent/pkg/uuidx"
	"github.com/google/uuid"
)

var (
	// ErrReleased is the cause attached to selects that were pending when the
	// provider was released.
	ErrReleased = errors.New("output provider released")
	// ErrForgotten is the cause attached to selects on a run that was dropped
	// from the log.
	ErrForgotten = errors.New("run was forgotten")
	// ErrNoValue is the default cause for closing a run without a value.
	ErrNoValue = errors.New("run finished without publishing")
)

func runLabel(id uuid.UUID) string {
	if id == uuid.Nil {
		return "<global>"
	}
	return uuidx.String(id)
}

// DoubleTerminalError means a second terminal value, or any value after the
// terminal one, was published for the same run.
type DoubleTerminalError struct {
	Slot  string
	RunID uuid.UUID
}

func (e *DoubleTerminalError) Error() string {
	return fmt.Sprintf("%s: run %s already has a terminal value", e.Slot, runLabel(e.RunID))
}

// RunNotFoundError rejects a select on a run that finished without ever
// publishing to the slot. Cause says why it never will.
type RunNotFoundError struct {
	Slot  string
	RunID uuid.UUID
	Cause error
}

func (e *RunNotFoundError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: run %s published no value", e.Slot, runLabel(e.RunID))
	}
	return fmt.Sprintf("%s: run %s published no value: %v", e.Slot, runLabel(e.RunID), e.Cause)
}

func (e *RunNotFoundError) Unwrap() error {
	return e.Cause
}

// RunCancelledError rejects selects and publishes for a cancelled run.
type RunCancelledError struct {
	Slot  string
	RunID uuid.UUID
}

func (e *RunCancelledError) Error() string {
	return fmt.Sprintf("%s: run %s was cancelled", e.Slot, runLabel(e.RunID))
}

// RunClosedError is returned when publishing to a run that was already closed
// on this slot.
type RunClosedError struct {
	Slot  string
	RunID uuid.UUID
}

func (e *RunClosedError) Error() string {
	return fmt.Sprintf("%s: run %s is closed", e.Slot, runLabel(e.RunID))
}
