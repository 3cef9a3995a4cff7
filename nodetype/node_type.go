package nodetype

import (
	"context"
	"strings"

	"golang.org/x/mod/semver"
)

// ComputeFunc runs one node instance for one run. It publishes every declared
// output through call before returning nil; a returned error fails the node.
type ComputeFunc func(ctx context.Context, call Call) error

// NodeType describes a kind of node. Treat it as immutable once registered.
type NodeType struct {
	ID          string
	Version     string
	Description string
	Inputs      *Schema
	Outputs     *Schema
	Compute     ComputeFunc
}

// NodeRef identifies a placed node instance together with its kind.
type NodeRef struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Version string `json:"version"`
}

// Ref returns the reference for an instance of this type.
func (t *NodeType) Ref(instanceID string) NodeRef {
	return NodeRef{ID: instanceID, Type: t.ID, Version: t.Version}
}

// Key is the registry key of the type: its id and canonical version.
func (t *NodeType) Key() string {
	return key(t.ID, t.Version)
}

func (t *NodeType) String() string {
	return t.ID + "@" + t.Version
}

func (t *NodeType) validate() error {
	invalid := func(reason string) error {
		return &InvalidTypeError{ID: t.ID, Version: t.Version, Reason: reason}
	}
	if strings.TrimSpace(t.ID) == "" {
		return invalid("id is required")
	}
	if canonicalVersion(t.Version) == "" {
		return invalid("version must be a semantic version")
	}
	if t.Compute == nil {
		return invalid("compute function is required")
	}
	for _, schema := range []*Schema{t.Inputs, t.Outputs} {
		if schema != nil && len(schema.duplicates) > 0 {
			return invalid("duplicate slot " + schema.duplicates[0])
		}
	}
	for slot := range t.Outputs.All() {
		if slot.Optional {
			return invalid("output " + slot.Name + " cannot be optional")
		}
	}
	return nil
}

func canonicalVersion(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

func key(id, version string) string {
	cv := canonicalVersion(version)
	if cv == "" {
		cv = version
	}
	return id + "@" + cv
}
