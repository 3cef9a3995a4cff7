package executor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/casualjim/reagent/graph"
	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/output"
	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/google/uuid"
)

// compute runs the node's computation with its resolved inputs and checks
// that every output was completed.
func (r *Run) compute(node *graph.Node) (err error) {
	c := &call{
		run:       r,
		node:      node,
		values:    make(map[string]any),
		completed: make(map[string]bool),
		logger:    r.logger.With(slogx.NodeID(node.ID), slog.String("type", node.Type.String())),
	}

	// nodes that stream read their other inputs lazily, the rest are ready
	// only once every input is available
	if !streams(node) {
		for _, in := range node.Inputs() {
			v, err := in.Provider.SelectContext(r.ctx, r.id)
			if err != nil {
				return fmt.Errorf("input %s: %w", in.Slot.Name, err)
			}
			c.values[in.Slot.Name] = v
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("node panicked", slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	if err := node.Type.Compute(r.ctx, c); err != nil {
		if inputErr := c.inputError(); inputErr != nil {
			return inputErr
		}
		return err
	}

	var missing []string
	for slot := range node.Type.Outputs.All() {
		if !c.isCompleted(slot.Name) {
			missing = append(missing, slot.Name)
		}
	}
	if len(missing) > 0 {
		return &IncompleteOutputError{Node: node.ID, Slots: missing}
	}
	return nil
}

func streams(node *graph.Node) bool {
	for _, in := range node.Inputs() {
		if in.Streaming {
			return true
		}
	}
	return false
}

// call is the executor's implementation of nodetype.Call.
type call struct {
	run    *Run
	node   *graph.Node
	logger *slog.Logger

	mu        sync.Mutex
	values    map[string]any
	inputErr  error
	completed map[string]bool
}

var _ nodetype.Call = (*call)(nil)

func (c *call) RunID() uuid.UUID {
	return c.run.id
}

func (c *call) Node() nodetype.NodeRef {
	return c.node.Ref()
}

func (c *call) Config() nodetype.Config {
	return c.node.Config.Clone()
}

func (c *call) Logger() *slog.Logger {
	return c.logger
}

// Input returns the terminal value bound to slot, waiting for it when the
// node started before it was available. When the value can never arrive it
// reports false and the node fails with the reason if its compute fails.
func (c *call) Input(slot string) (any, bool) {
	c.mu.Lock()
	v, ok := c.values[slot]
	c.mu.Unlock()
	if ok {
		return v, true
	}

	in, bound := c.node.Input(slot)
	if !bound || in.Streaming {
		return nil, false
	}
	v, err := in.Provider.SelectContext(c.run.ctx, c.run.id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.inputErr == nil {
			c.inputErr = fmt.Errorf("input %s: %w", slot, err)
		}
		return nil, false
	}
	c.values[slot] = v
	return v, true
}

func (c *call) inputError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputErr
}

func (c *call) RunInput(key string) (any, bool) {
	v, ok := c.run.inputs[key]
	return v, ok
}

func (c *call) Stream(slot string) iter.Seq2[nodetype.Chunk, error] {
	return func(yield func(nodetype.Chunk, error) bool) {
		if _, declared := c.node.Type.Inputs.Get(slot); !declared {
			yield(nodetype.Chunk{}, &SlotError{Node: c.node.ID, Slot: slot, Reason: "no such input"})
			return
		}
		in, bound := c.node.Input(slot)
		if !bound {
			return
		}
		if !in.Streaming {
			v, ok := c.Input(slot)
			if !ok {
				yield(nodetype.Chunk{}, c.inputError())
				return
			}
			yield(nodetype.Chunk{Value: v, Terminal: true}, nil)
			return
		}
		c.stream(in, yield)
	}
}

// stream follows the producer's slot for this run. The subscription holds
// the producer back while the consumer is busy.
func (c *call) stream(in graph.Input, yield func(nodetype.Chunk, error) bool) {
	ctx, cancel := context.WithCancel(c.run.ctx)
	defer cancel()

	events := make(chan output.Event)
	sub, err := in.Provider.Subscribe(ctx, output.ForRun(c.run.id, output.HookFunc(func(ctx context.Context, e output.Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	})))
	if err != nil {
		yield(nodetype.Chunk{}, err)
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case e := <-events:
			switch {
			case e.Aborted():
				yield(nodetype.Chunk{}, e.Err)
				return
			case e.Global():
				yield(nodetype.Chunk{Value: e.Value, Terminal: true}, nil)
				return
			}
			if !yield(nodetype.Chunk{Value: e.Value, Terminal: e.Terminal}, nil) || e.Terminal {
				return
			}
		case <-sub.Done():
			yield(nodetype.Chunk{}, fmt.Errorf("input %s: %w", in.Slot.Name, output.ErrReleased))
			return
		case <-ctx.Done():
			yield(nodetype.Chunk{}, context.Cause(ctx))
			return
		}
	}
}

func (c *call) output(slot string, value any) (*output.Provider, error) {
	decl, ok := c.node.Type.Outputs.Get(slot)
	if !ok {
		return nil, &SlotError{Node: c.node.ID, Slot: slot, Reason: "no such output"}
	}
	if !decl.Type.Accepts(value) {
		return nil, &ValueTypeError{Node: c.node.ID, Slot: slot, Want: decl.Type, Value: value}
	}
	if c.run.ctx.Err() != nil {
		// refuse before the providers learn about the cancellation
		return nil, &output.RunCancelledError{Slot: graph.Port{Node: c.node.ID, Slot: slot}.String(), RunID: c.run.id}
	}
	p, _ := c.node.Output(slot)
	return p, nil
}

func (c *call) Emit(ctx context.Context, slot string, value any) error {
	if decl, ok := c.node.Type.Outputs.Get(slot); ok && !decl.Streaming {
		return &SlotError{Node: c.node.ID, Slot: slot, Reason: "output does not stream"}
	}
	p, err := c.output(slot, value)
	if err != nil {
		return err
	}
	return p.Publish(ctx, c.run.id, value, false)
}

func (c *call) Complete(ctx context.Context, slot string, value any) error {
	p, err := c.output(slot, value)
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, c.run.id, value, true); err != nil {
		return err
	}
	c.mu.Lock()
	c.completed[slot] = true
	c.mu.Unlock()
	c.run.signals <- signal{kind: slotCompleted, node: c.node.ID, slot: slot}
	return nil
}

func (c *call) isCompleted(slot string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed[slot]
}

func (c *call) Render(_ context.Context, step string, data any) {
	c.run.publishRender(c.node, step, data)
}
