package graph

import (
	"github.com/casualjim/reagent/nodetype"
	"github.com/invopop/jsonschema"
)

// Description is a serializable view of a graph, for dumps and presentation
// layers.
type Description struct {
	Order []string          `json:"order"`
	Nodes []NodeDescription `json:"nodes"`
}

type NodeDescription struct {
	nodetype.NodeRef
	Config  nodetype.Config   `json:"config,omitempty"`
	Inputs  []SlotDescription `json:"inputs,omitempty"`
	Outputs []SlotDescription `json:"outputs,omitempty"`
}

type SlotDescription struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Schema      *jsonschema.Schema `json:"schema,omitempty"`
	Streaming   bool               `json:"streaming,omitempty"`
	Optional    bool               `json:"optional,omitempty"`
	From        string             `json:"from,omitempty"`
	Streamed    bool               `json:"streamed,omitempty"`
	Constant    any                `json:"constant,omitempty"`
	Bound       bool               `json:"bound"`
}

func describeSlot(slot nodetype.Slot) SlotDescription {
	return SlotDescription{
		Name:        slot.Name,
		Description: slot.Description,
		Schema:      slot.Type.JSONSchema(),
		Streaming:   slot.Streaming,
		Optional:    slot.Optional,
	}
}

// Describe returns the description of the graph in execution order.
func (g *Graph) Describe() Description {
	desc := Description{Order: g.Order()}
	for _, n := range g.nodes {
		nd := NodeDescription{NodeRef: n.Ref(), Config: n.Config.Clone()}
		for slot := range n.Type.Inputs.All() {
			sd := describeSlot(slot)
			if in, ok := n.Input(slot.Name); ok {
				sd.Bound = true
				sd.Streamed = in.Streaming
				if in.Constant() {
					sd.Constant = in.Provider.Events()[0].Value
				} else {
					sd.From = in.From.String()
				}
			}
			nd.Inputs = append(nd.Inputs, sd)
		}
		for slot := range n.Type.Outputs.All() {
			sd := describeSlot(slot)
			sd.Bound = true
			nd.Outputs = append(nd.Outputs, sd)
		}
		desc.Nodes = append(desc.Nodes, nd)
	}
	return desc
}
