package nodetype

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Slot is one named input or output of a node type.
type Slot struct {
	Name        string
	Type        ValueType
	Description string
	// Streaming on an output means the node may publish partial values before
	// the terminal one. On an input it means the node consumes those partials.
	Streaming bool
	// Optional inputs may be left unbound.
	Optional bool
}

func NewSlot(name string, typ ValueType) Slot {
	return Slot{Name: name, Type: typ}
}

func (s Slot) Streamed() Slot {
	s.Streaming = true
	return s
}

func (s Slot) AsOptional() Slot {
	s.Optional = true
	return s
}

func (s Slot) Describe(description string) Slot {
	s.Description = description
	return s
}

// Schema is an insertion ordered set of slots.
type Schema struct {
	slots      *orderedmap.OrderedMap[string, Slot]
	duplicates []string
}

func NewSchema(slots ...Slot) *Schema {
	s := &Schema{slots: orderedmap.New[string, Slot]()}
	for _, slot := range slots {
		if _, present := s.slots.Set(slot.Name, slot); present {
			s.duplicates = append(s.duplicates, slot.Name)
		}
	}
	return s
}

func (s *Schema) Get(name string) (Slot, bool) {
	if s == nil {
		return Slot{}, false
	}
	return s.slots.Get(name)
}

func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return s.slots.Len()
}

// Names returns the slot names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, 0, s.Len())
	for slot := range s.All() {
		names = append(names, slot.Name)
	}
	return names
}

// All iterates the slots in declaration order.
func (s *Schema) All() iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if s == nil {
			return
		}
		for pair := s.slots.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Value) {
				return
			}
		}
	}
}
