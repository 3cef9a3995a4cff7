package provider

import (
	"fmt"
	"slices"

	"github.com/casualjim/reagent/internal/registry"
	"github.com/casualjim/reagent/pkg/stdx"
)

// UnknownModelError is returned when a model name isn't registered.
type UnknownModelError struct {
	Name string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Name)
}

// DuplicateModelError is returned when a model name is registered twice.
type DuplicateModelError struct {
	Name string
}

func (e *DuplicateModelError) Error() string {
	return fmt.Sprintf("model %q is already registered", e.Name)
}

// Models is a concurrent registry of models keyed by name.
type Models struct {
	models registry.Registry[Model]
}

// NewModels creates a registry holding the given models. It panics on
// duplicate names.
func NewModels(models ...Model) *Models {
	m := &Models{models: registry.New[Model]()}
	for _, model := range models {
		stdx.Must0(m.Add(model))
	}
	return m
}

// Add registers model under its name.
func (m *Models) Add(model Model) error {
	if !m.models.TryAdd(model.Name(), model) {
		return &DuplicateModelError{Name: model.Name()}
	}
	return nil
}

// Get looks up a model by name.
func (m *Models) Get(name string) (Model, error) {
	model, ok := m.models.Get(name)
	if !ok {
		return nil, &UnknownModelError{Name: name}
	}
	return model, nil
}

// Names returns the sorted names of all registered models.
func (m *Models) Names() []string {
	names := make([]string, 0, m.models.Len())
	m.models.ForEach(func(name string, _ Model) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// NewModel pairs a model name with the provider serving it.
func NewModel(name string, p Provider) Model {
	return staticModel{name: name, provider: p}
}

type staticModel struct {
	name     string
	provider Provider
}

func (m staticModel) Name() string       { return m.name }
func (m staticModel) Provider() Provider { return m.provider }
