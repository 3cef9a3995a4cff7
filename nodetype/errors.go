package nodetype

import "fmt"

// DuplicateTypeError is returned when a (id, version) pair is registered twice.
type DuplicateTypeError struct {
	ID      string
	Version string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("node type %s@%s is already registered", e.ID, e.Version)
}

// UnknownTypeError is returned when a lookup misses.
type UnknownTypeError struct {
	ID      string
	Version string
}

func (e *UnknownTypeError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("unknown node type %s", e.ID)
	}
	return fmt.Sprintf("unknown node type %s@%s", e.ID, e.Version)
}

// InvalidTypeError is returned when a node type record is malformed.
type InvalidTypeError struct {
	ID      string
	Version string
	Reason  string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid node type %s@%s: %s", e.ID, e.Version, e.Reason)
}
