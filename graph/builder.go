package graph

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/output"
	"github.com/fogfish/opts"
)

var (
	WithLogger = opts.ForName[Builder, *slog.Logger]("logger")
)

// WithProviderOptions configures the output providers of every graph the
// builder finalizes.
func WithProviderOptions(options ...opts.Option[output.Provider]) opts.Option[Builder] {
	return opts.Type[Builder](func(b *Builder) error {
		b.providerOptions = append(b.providerOptions, options...)
		return nil
	})
}

// Source is what an input slot can be bound to: an OutputRef, a constant
// made with Const, or a streaming reference made with Streamed.
type Source interface {
	describe() string
}

// OutputRef points at an output slot of a node in the same builder.
type OutputRef struct {
	owner *Builder
	Node  string
	Slot  string
}

func (r OutputRef) String() string {
	return r.Node + "." + r.Slot
}

func (r OutputRef) describe() string {
	return r.String()
}

type constant struct {
	value any
}

func (c constant) describe() string {
	return "constant"
}

// Const binds an input to a run-independent value.
func Const(value any) Source {
	return constant{value: value}
}

type streamRef struct {
	OutputRef
}

func (r streamRef) describe() string {
	return r.String() + " (streamed)"
}

// Streamed binds a streaming input to ref. The consumer starts once the
// producer is running and receives every partial value in publication order
// before the terminal one.
func Streamed(ref OutputRef) Source {
	return streamRef{OutputRef: ref}
}

// Bindings maps input slot names to sources.
type Bindings map[string]Source

type binding struct {
	slot      nodetype.Slot
	from      *OutputRef
	value     any
	streaming bool
}

type instance struct {
	id       string
	created  int
	typ      *nodetype.NodeType
	config   nodetype.Config
	bindings map[string]binding
}

// Builder accumulates node instances and bindings. It is not safe for
// concurrent use.
type Builder struct {
	registry        *nodetype.Registry
	logger          *slog.Logger
	providerOptions []opts.Option[output.Provider]

	nodes []*instance
	index map[string]*instance
}

// NewBuilder creates a builder that accepts node types registered in reg.
func NewBuilder(reg *nodetype.Registry, options ...opts.Option[Builder]) *Builder {
	b := &Builder{
		registry: reg,
		index:    make(map[string]*instance),
	}
	if err := opts.Apply(b, options); err != nil {
		panic(err)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// NodeHandle refers to a node instance inside its builder.
type NodeHandle struct {
	b    *Builder
	inst *instance
}

func (h *NodeHandle) ID() string {
	return h.inst.id
}

func (h *NodeHandle) Type() *nodetype.NodeType {
	return h.inst.typ
}

// Output references one of the node's output slots. The slot is checked when
// the reference is bound.
func (h *NodeHandle) Output(slot string) OutputRef {
	return OutputRef{owner: h.b, Node: h.inst.id, Slot: slot}
}

// Bind is shorthand for the builder's Bind.
func (h *NodeHandle) Bind(bindings Bindings) error {
	return h.b.Bind(h, bindings)
}

// AddNode places an instance of t under id. t must be the type registered in
// the builder's registry under its id and version.
func (b *Builder) AddNode(id string, t *nodetype.NodeType, config nodetype.Config) (*NodeHandle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &InvalidInstanceError{Node: id, Reason: "id is required"}
	}
	if strings.ContainsAny(id, ". \t\n") {
		return nil, &InvalidInstanceError{Node: id, Reason: "id must not contain dots or whitespace"}
	}
	if _, exists := b.index[id]; exists {
		return nil, &DuplicateInstanceError{Node: id}
	}
	if t == nil {
		return nil, &nodetype.UnknownTypeError{}
	}
	if !b.registry.Contains(t) {
		return nil, &nodetype.UnknownTypeError{ID: t.ID, Version: t.Version}
	}

	inst := &instance{
		id:       id,
		created:  len(b.nodes),
		typ:      t,
		config:   config.Clone(),
		bindings: make(map[string]binding),
	}
	b.nodes = append(b.nodes, inst)
	b.index[id] = inst
	b.logger.Debug("node added", slog.String("node", id), slog.String("type", t.String()))
	return &NodeHandle{b: b, inst: inst}, nil
}

// AddNodeOf looks the type up in the registry and adds it. An empty version
// selects the latest registered one.
func (b *Builder) AddNodeOf(id, typeID, version string, config nodetype.Config) (*NodeHandle, error) {
	var (
		t   *nodetype.NodeType
		err error
	)
	if version == "" {
		t, err = b.registry.Latest(typeID)
	} else {
		t, err = b.registry.Lookup(typeID, version)
	}
	if err != nil {
		return nil, err
	}
	return b.AddNode(id, t, config)
}

// Node returns the handle of an instance added earlier.
func (b *Builder) Node(id string) (*NodeHandle, bool) {
	inst, ok := b.index[id]
	if !ok {
		return nil, false
	}
	return &NodeHandle{b: b, inst: inst}, true
}

// Bind binds input slots of h. Either every binding is applied or none is.
// Binding a slot again replaces the earlier binding.
func (b *Builder) Bind(h *NodeHandle, bindings Bindings) error {
	if h == nil {
		return &InvalidInstanceError{Reason: "handle is nil"}
	}
	if h.b != b || b.index[h.inst.id] != h.inst {
		return &ForeignNodeError{Node: h.inst.id}
	}
	inst := h.inst

	slots := make([]string, 0, len(bindings))
	for slot := range bindings {
		slots = append(slots, slot)
	}
	slices.SortFunc(slots, func(a, c string) int {
		return compareSlots(inst.typ.Inputs, a, c)
	})

	staged := make([]binding, 0, len(slots))
	for _, name := range slots {
		bnd, err := b.resolveSource(inst, name, bindings[name])
		if err != nil {
			return err
		}
		staged = append(staged, bnd)
	}

	for _, bnd := range staged {
		inst.bindings[bnd.slot.Name] = bnd
	}
	return nil
}

// compareSlots orders declared slots by declaration and unknown ones after
// them by name, so validation errors are reproducible.
func compareSlots(schema *nodetype.Schema, a, b string) int {
	names := schema.Names()
	ia, ib := slices.Index(names, a), slices.Index(names, b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func (b *Builder) resolveSource(inst *instance, name string, src Source) (binding, error) {
	slot, ok := inst.typ.Inputs.Get(name)
	if !ok {
		return binding{}, &UnknownSlotError{Node: inst.id, Type: inst.typ.String(), Slot: name, Direction: InputSlot}
	}

	switch src := src.(type) {
	case constant:
		if !slot.Type.Accepts(src.value) {
			return binding{}, &TypeMismatchError{
				Node: inst.id, Slot: name, Source: src.describe(),
				Want: slot.Type, Got: nodetype.TypeOfValue(src.value),
			}
		}
		return binding{slot: slot, value: src.value}, nil

	case OutputRef:
		from, err := b.checkRef(inst, slot, src)
		if err != nil {
			return binding{}, err
		}
		return binding{slot: slot, from: from}, nil

	case streamRef:
		if !slot.Streaming {
			return binding{}, &TypeMismatchError{
				Node: inst.id, Slot: name, Source: src.describe(),
				Want: slot.Type, Reason: "input slot does not accept streamed values",
			}
		}
		from, err := b.checkRef(inst, slot, src.OutputRef)
		if err != nil {
			return binding{}, err
		}
		return binding{slot: slot, from: from, streaming: true}, nil

	case nil:
		return binding{}, &TypeMismatchError{Node: inst.id, Slot: name, Source: "nil", Want: slot.Type, Reason: "source is required"}

	default:
		return binding{}, &TypeMismatchError{Node: inst.id, Slot: name, Source: src.describe(), Want: slot.Type, Reason: "unsupported source"}
	}
}

func (b *Builder) checkRef(inst *instance, slot nodetype.Slot, ref OutputRef) (*OutputRef, error) {
	if ref.owner != b {
		return nil, &ForeignNodeError{Node: ref.Node}
	}
	producer, ok := b.index[ref.Node]
	if !ok {
		return nil, &ForeignNodeError{Node: ref.Node}
	}
	out, ok := producer.typ.Outputs.Get(ref.Slot)
	if !ok {
		return nil, &UnknownSlotError{Node: producer.id, Type: producer.typ.String(), Slot: ref.Slot, Direction: OutputSlot}
	}
	if !slot.Type.AcceptsType(out.Type) {
		return nil, &TypeMismatchError{
			Node: inst.id, Slot: slot.Name, Source: ref.String(),
			Want: slot.Type, Got: out.Type,
		}
	}
	return &ref, nil
}
