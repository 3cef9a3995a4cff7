package nodes

import (
	"context"
	"fmt"

	"github.com/casualjim/reagent/nodetype"
)

const InputTypeID = "@core/input"

// MissingInputError is returned when a run was started without a value the
// input node exposes.
type MissingInputError struct {
	Node string
	Key  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("node %s: run input %q was not supplied", e.Node, e.Key)
}

// Input returns the input collector kind. Each output slot publishes the run
// input of the same name, falling back to the node config entry with that key.
func Input(keys ...string) *nodetype.NodeType {
	slots := make([]nodetype.Slot, 0, len(keys))
	for _, k := range keys {
		slots = append(slots, nodetype.NewSlot(k, nodetype.String).Describe("run input "+k))
	}

	return &nodetype.NodeType{
		ID:          InputTypeID,
		Version:     "1.0.0",
		Description: "Publishes the values the run was started with",
		Outputs:     nodetype.NewSchema(slots...),
		Compute: func(ctx context.Context, call nodetype.Call) error {
			cfg := call.Config()
			for _, k := range keys {
				v, ok := call.RunInput(k)
				if !ok {
					v, ok = cfg[k]
				}
				if !ok {
					return &MissingInputError{Node: call.Node().ID, Key: k}
				}
				if err := call.Complete(ctx, k, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
