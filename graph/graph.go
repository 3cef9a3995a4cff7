package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/output"
	"github.com/google/uuid"
)

// Port names an output slot of a node.
type Port struct {
	Node string
	Slot string
}

func (p Port) String() string {
	return p.Node + "." + p.Slot
}

// Input is a bound input slot of a node.
type Input struct {
	Slot nodetype.Slot
	// From is the producing port, or nil when the slot is bound to a constant.
	From *Port
	// Provider is the slot the input reads from: the producer's output, or a
	// provider holding the constant as its run-independent value.
	Provider  *output.Provider
	Streaming bool
}

// Constant reports whether the input is bound to a constant.
func (in Input) Constant() bool {
	return in.From == nil
}

// Node is a node instance inside a finalized graph.
type Node struct {
	ID     string
	Type   *nodetype.NodeType
	Config nodetype.Config
	// Position is the index of the node in the execution order.
	Position int

	inputs       []Input
	outputs      map[string]*output.Provider
	dependencies []string
	dependents   []string
}

func (n *Node) Ref() nodetype.NodeRef {
	return n.Type.Ref(n.ID)
}

// Inputs returns the bound input slots in declaration order.
func (n *Node) Inputs() []Input {
	return slices.Clone(n.inputs)
}

// Input returns the binding of one input slot.
func (n *Node) Input(slot string) (Input, bool) {
	for _, in := range n.inputs {
		if in.Slot.Name == slot {
			return in, true
		}
	}
	return Input{}, false
}

// Output returns the provider of an output slot.
func (n *Node) Output(slot string) (*output.Provider, bool) {
	p, ok := n.outputs[slot]
	return p, ok
}

// Outputs returns the output providers in declaration order.
func (n *Node) Outputs() []*output.Provider {
	providers := make([]*output.Provider, 0, len(n.outputs))
	for slot := range n.Type.Outputs.All() {
		providers = append(providers, n.outputs[slot.Name])
	}
	return providers
}

// Graph is an immutable, finalized set of nodes and bindings. It is safe for
// concurrent use by any number of runs.
type Graph struct {
	nodes     []*Node
	index     map[string]*Node
	constants []*output.Provider
	logger    *slog.Logger

	releaseOnce sync.Once
}

// Finalize resolves the bindings and returns the graph, or the first set of
// validation errors. It may be called again; every call returns a new Graph
// with its own providers and the same order.
func (b *Builder) Finalize() (*Graph, error) {
	res, err := resolve(b.nodes)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		nodes:  make([]*Node, 0, len(res.order)),
		index:  make(map[string]*Node, len(res.order)),
		logger: b.logger,
	}
	for i, inst := range res.order {
		node := &Node{
			ID:           inst.id,
			Type:         inst.typ,
			Config:       inst.config.Clone(),
			Position:     i,
			outputs:      make(map[string]*output.Provider, inst.typ.Outputs.Len()),
			dependencies: slices.Clone(res.dependencies[inst.id]),
			dependents:   slices.Clone(res.dependents[inst.id]),
		}
		for slot := range inst.typ.Outputs.All() {
			node.outputs[slot.Name] = output.New(Port{Node: inst.id, Slot: slot.Name}.String(), b.providerOptions...)
		}
		g.nodes = append(g.nodes, node)
		g.index[node.ID] = node
	}

	// producers precede consumers, so their providers exist by now
	for _, node := range g.nodes {
		inst := b.index[node.ID]
		for slot := range inst.typ.Inputs.All() {
			bnd, ok := inst.bindings[slot.Name]
			if !ok {
				continue
			}
			in := Input{Slot: bnd.slot, Streaming: bnd.streaming}
			if bnd.from != nil {
				in.From = &Port{Node: bnd.from.Node, Slot: bnd.from.Slot}
				in.Provider = g.index[bnd.from.Node].outputs[bnd.from.Slot]
			} else {
				in.Provider = output.New(Port{Node: node.ID, Slot: slot.Name}.String()+"#const", b.providerOptions...)
				if err := in.Provider.Publish(context.Background(), uuid.Nil, bnd.value, true); err != nil {
					g.Release()
					return nil, fmt.Errorf("publish constant for %s.%s: %w", node.ID, slot.Name, err)
				}
				g.constants = append(g.constants, in.Provider)
			}
			node.inputs = append(node.inputs, in)
		}
	}

	b.logger.Debug("graph finalized", slog.Int("nodes", len(g.nodes)), slog.Any("order", g.Order()))
	return g, nil
}

// Order returns the instance ids in execution order.
func (g *Graph) Order() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Nodes returns the nodes in execution order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Dependencies returns the ids of the nodes id reads from, in creation order.
func (g *Graph) Dependencies(id string) []string {
	if n, ok := g.index[id]; ok {
		return slices.Clone(n.dependencies)
	}
	return nil
}

// Dependents returns the ids of the nodes reading from id, in creation order.
func (g *Graph) Dependents(id string) []string {
	if n, ok := g.index[id]; ok {
		return slices.Clone(n.dependents)
	}
	return nil
}

// Output returns the provider of node's output slot. This is how consumers
// observe results.
func (g *Graph) Output(node, slot string) (*output.Provider, error) {
	n, ok := g.index[node]
	if !ok {
		return nil, &UnknownNodeError{Node: node}
	}
	p, ok := n.outputs[slot]
	if !ok {
		return nil, &UnknownSlotError{Node: node, Type: n.Type.String(), Slot: slot, Direction: OutputSlot}
	}
	return p, nil
}

// Providers returns every provider owned by the graph: node outputs in
// execution and declaration order, then constants.
func (g *Graph) Providers() []*output.Provider {
	var providers []*output.Provider
	for _, n := range g.nodes {
		providers = append(providers, n.Outputs()...)
	}
	return append(providers, g.constants...)
}

// Release releases every provider of the graph. Pending selects reject and
// subscriptions end. The graph must not be executed afterwards.
func (g *Graph) Release() {
	g.releaseOnce.Do(func() {
		for _, p := range g.Providers() {
			p.Release()
		}
		g.logger.Debug("graph released", slog.Int("nodes", len(g.nodes)))
	})
}
