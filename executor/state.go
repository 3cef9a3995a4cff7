package executor

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a node within one run.
type State int

const (
	Pending State = iota
	Ready
	Running
	Completed
	Failed
	Cancelled
)

var stateNames = [...]string{"pending", "ready", "running", "completed", "failed", "cancelled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Status is the outcome of a whole run.
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusPartiallyFailed
	StatusCancelled
)

var statusNames = [...]string{"running", "completed", "partially_failed", "cancelled"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NodeResult is what a run recorded about one node.
type NodeResult struct {
	State    State
	Err      error
	Started  time.Time
	Finished time.Time
}
