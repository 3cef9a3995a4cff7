package nodes

import (
	"context"
	"errors"

	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/render"
)

const UserTypeID = "@core/user"

// ErrNoMarkdown is returned when the user node has neither of its inputs bound.
var ErrNoMarkdown = errors.New("user node needs markdown or markdownStream")

// User returns the output sink kind. It renders every partial of
// markdownStream as a stream step and the final text as a message step. When
// markdownStream is unbound it renders the markdown input instead.
func User() *nodetype.NodeType {
	return &nodetype.NodeType{
		ID:          UserTypeID,
		Version:     "1.0.0",
		Description: "Shows the answer to the user",
		Inputs: nodetype.NewSchema(
			nodetype.NewSlot("markdown", nodetype.String).AsOptional(),
			nodetype.NewSlot("markdownStream", nodetype.String).Streamed().AsOptional(),
		),
		Outputs: nodetype.NewSchema(
			nodetype.NewSlot("markdown", nodetype.String).Describe("text shown to the user"),
		),
		Compute: user,
	}
}

func user(ctx context.Context, call nodetype.Call) error {
	var (
		final any
		done  bool
	)
	for chunk, err := range call.Stream("markdownStream") {
		if err != nil {
			return err
		}
		if chunk.Terminal {
			final, done = chunk.Value, true
			break
		}
		call.Render(ctx, render.StepStream, chunk.Value)
	}

	if !done {
		final, done = call.Input("markdown")
	}
	if !done {
		return ErrNoMarkdown
	}

	call.Render(ctx, render.StepMessage, final)
	return call.Complete(ctx, "markdown", final)
}
