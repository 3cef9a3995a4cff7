package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/reagent/graph"
	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/output"
	"github.com/casualjim/reagent/render"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// inputType publishes the run inputs named like its outputs.
func inputType(slots ...string) *nodetype.NodeType {
	outs := make([]nodetype.Slot, 0, len(slots))
	for _, s := range slots {
		outs = append(outs, nodetype.NewSlot(s, nodetype.String))
	}
	return &nodetype.NodeType{
		ID: "@test/input", Version: "1.0.0",
		Outputs: nodetype.NewSchema(outs...),
		Compute: func(ctx context.Context, call nodetype.Call) error {
			for _, s := range slots {
				v, ok := call.RunInput(s)
				if !ok {
					return fmt.Errorf("missing run input %s", s)
				}
				if err := call.Complete(ctx, s, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// chatType streams tokens on "stream" and completes both outputs with the
// last one. When hold is set, it waits for it to close after the first token.
type chatType struct {
	tokens  []string
	hold    chan struct{}
	emitted chan struct{}

	mu       sync.Mutex
	lateErrs []error
}

func newChat(tokens ...string) *chatType {
	return &chatType{tokens: tokens, emitted: make(chan struct{}, len(tokens))}
}

func (c *chatType) NodeType() *nodetype.NodeType {
	return &nodetype.NodeType{
		ID: "@test/chat", Version: "1.0.0",
		Inputs: nodetype.NewSchema(
			nodetype.NewSlot("model", nodetype.String),
			nodetype.NewSlot("query", nodetype.String),
		),
		Outputs: nodetype.NewSchema(
			nodetype.NewSlot("markdown", nodetype.String),
			nodetype.NewSlot("stream", nodetype.String).Streamed(),
		),
		Compute: c.compute,
	}
}

func (c *chatType) compute(ctx context.Context, call nodetype.Call) error {
	for i, tok := range c.tokens {
		if err := call.Emit(ctx, "stream", tok); err != nil {
			c.mu.Lock()
			c.lateErrs = append(c.lateErrs, err)
			c.mu.Unlock()
			return err
		}
		call.Render(ctx, render.StepToken, tok)
		c.emitted <- struct{}{}
		if i == 0 && c.hold != nil {
			select {
			case <-c.hold:
			case <-ctx.Done():
				// keep going to prove later publishes are refused
			}
		}
	}
	last := c.tokens[len(c.tokens)-1]
	if err := call.Complete(ctx, "stream", last); err != nil {
		return err
	}
	return call.Complete(ctx, "markdown", last)
}

func (c *chatType) LateErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.lateErrs...)
}

// userType echoes a streamed text input and records every chunk it saw.
type userType struct {
	mu     sync.Mutex
	chunks []nodetype.Chunk
}

func (u *userType) NodeType() *nodetype.NodeType {
	return &nodetype.NodeType{
		ID: "@test/user", Version: "1.0.0",
		Inputs: nodetype.NewSchema(
			nodetype.NewSlot("markdown", nodetype.String).AsOptional(),
			nodetype.NewSlot("markdownStream", nodetype.String).Streamed().AsOptional(),
		),
		Outputs: nodetype.NewSchema(nodetype.NewSlot("markdown", nodetype.String)),
		Compute: func(ctx context.Context, call nodetype.Call) error {
			if v, ok := call.Input("markdown"); ok {
				return call.Complete(ctx, "markdown", v)
			}
			var last any
			for chunk, err := range call.Stream("markdownStream") {
				if err != nil {
					return err
				}
				u.mu.Lock()
				u.chunks = append(u.chunks, chunk)
				u.mu.Unlock()
				last = chunk.Value
			}
			return call.Complete(ctx, "markdown", last)
		},
	}
}

func (u *userType) Chunks() []nodetype.Chunk {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]nodetype.Chunk(nil), u.chunks...)
}

// funcType is a one slot node type around an arbitrary compute function.
func funcType(id string, inputs []string, compute nodetype.ComputeFunc) *nodetype.NodeType {
	ins := make([]nodetype.Slot, 0, len(inputs))
	for _, s := range inputs {
		ins = append(ins, nodetype.NewSlot(s, nodetype.String))
	}
	return &nodetype.NodeType{
		ID: id, Version: "1.0.0",
		Inputs:  nodetype.NewSchema(ins...),
		Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.String)),
		Compute: compute,
	}
}

func echo(ctx context.Context, call nodetype.Call) error {
	v, _ := call.Input("in")
	return call.Complete(ctx, "out", v)
}

var errBoom = errors.New("boom")

func fail(context.Context, nodetype.Call) error {
	return errBoom
}

// demoGraph assembles input -> chat -> user with a streamed binding between
// chat and user.
func demoGraph(t *testing.T, chat *chatType, user *userType) *graph.Graph {
	t.Helper()
	reg := nodetype.NewRegistry()
	in, ch, us := inputType("model", "query"), chat.NodeType(), user.NodeType()
	reg.MustRegister(in, ch, us)

	b := graph.NewBuilder(reg)
	input, err := b.AddNode("input", in, nil)
	require.NoError(t, err)
	chatNode, err := b.AddNode("chat-1", ch, nodetype.Config{"temperature": 0.9})
	require.NoError(t, err)
	userNode, err := b.AddNode("user", us, nil)
	require.NoError(t, err)

	require.NoError(t, chatNode.Bind(graph.Bindings{
		"model": input.Output("model"),
		"query": input.Output("query"),
	}))
	require.NoError(t, userNode.Bind(graph.Bindings{
		"markdownStream": graph.Streamed(chatNode.Output("stream")),
	}))

	g, err := b.Finalize()
	require.NoError(t, err)
	t.Cleanup(g.Release)
	return g
}

func provider(t *testing.T, g *graph.Graph, node, slot string) *output.Provider {
	t.Helper()
	p, err := g.Output(node, slot)
	require.NoError(t, err)
	return p
}

type recordingRender struct {
	mu      sync.Mutex
	updates []render.Update
}

func (h *recordingRender) OnUpdate(_ context.Context, u render.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

func (h *recordingRender) Steps(node string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var steps []string
	for _, u := range h.updates {
		if u.Node.ID == node {
			steps = append(steps, u.Render.Step)
		}
	}
	return steps
}

func (h *recordingRender) States(node string, runID uuid.UUID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var states []string
	for _, u := range h.updates {
		if u.Node.ID == node && u.RunID == runID && u.Render.Step == render.StepNodeState {
			states = append(states, u.Render.Data.(map[string]any)["state"].(string))
		}
	}
	return states
}
