package nodetype

import (
	"slices"
	"strings"

	"github.com/casualjim/reagent/internal/registry"
	"github.com/casualjim/reagent/pkg/stdx"
	"golang.org/x/mod/semver"
)

// Registry catalogs node types by (id, version). It is append-only.
type Registry struct {
	types registry.Registry[*NodeType]
}

func NewRegistry() *Registry {
	return &Registry{types: registry.New[*NodeType]()}
}

// Register adds t. It fails with DuplicateTypeError when the (id, version)
// pair is taken and with InvalidTypeError when t is malformed.
func (r *Registry) Register(t *NodeType) error {
	if t == nil {
		return &InvalidTypeError{Reason: "node type is nil"}
	}
	if err := t.validate(); err != nil {
		return err
	}
	if !r.types.TryAdd(t.Key(), t) {
		return &DuplicateTypeError{ID: t.ID, Version: t.Version}
	}
	return nil
}

// MustRegister is Register for static wiring code; it panics on error.
func (r *Registry) MustRegister(types ...*NodeType) {
	for _, t := range types {
		stdx.Must0(r.Register(t))
	}
}

// Lookup returns the type registered under id and version.
func (r *Registry) Lookup(id, version string) (*NodeType, error) {
	if t, ok := r.types.Get(key(id, version)); ok {
		return t, nil
	}
	return nil, &UnknownTypeError{ID: id, Version: version}
}

// Latest returns the highest registered version of id.
func (r *Registry) Latest(id string) (*NodeType, error) {
	var latest *NodeType
	r.types.ForEach(func(_ string, t *NodeType) bool {
		if t.ID == id && (latest == nil || semver.Compare(canonicalVersion(t.Version), canonicalVersion(latest.Version)) > 0) {
			latest = t
		}
		return true
	})
	if latest == nil {
		return nil, &UnknownTypeError{ID: id}
	}
	return latest, nil
}

// Contains reports whether t itself is the type registered under its key.
func (r *Registry) Contains(t *NodeType) bool {
	if t == nil {
		return false
	}
	registered, ok := r.types.Get(t.Key())
	return ok && registered == t
}

// List returns every registered type ordered by id, then version.
func (r *Registry) List() []*NodeType {
	all := make([]*NodeType, 0, r.types.Len())
	r.types.ForEach(func(_ string, t *NodeType) bool {
		all = append(all, t)
		return true
	})
	slices.SortFunc(all, func(a, b *NodeType) int {
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return semver.Compare(canonicalVersion(a.Version), canonicalVersion(b.Version))
	})
	return all
}
