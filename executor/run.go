package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/casualjim/reagent/graph"
	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/casualjim/reagent/render"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of a finished run.
type Result struct {
	RunID  uuid.UUID
	Status Status
	Nodes  map[string]NodeResult
	// Cause is why a cancelled run was cancelled.
	Cause error
}

// Err summarizes the result as an error: nil for completed runs, the
// cancellation cause for cancelled ones and the joined node failures
// otherwise.
func (r Result) Err() error {
	switch r.Status {
	case StatusCompleted, StatusRunning:
		return nil
	case StatusCancelled:
		return r.Cause
	}
	var errs []error
	for _, n := range r.Nodes {
		if n.State == Failed {
			errs = append(errs, n.Err)
		}
	}
	return errors.Join(errs...)
}

type signalKind int

const (
	slotCompleted signalKind = iota
	nodeFinished
)

type signal struct {
	kind signalKind
	node string
	slot string
	err  error
}

// Run is the handle of one execution of a graph.
type Run struct {
	id     uuid.UUID
	graph  *graph.Graph
	inputs Inputs
	exec   *Executor
	logger *slog.Logger

	ctx     context.Context
	cancel  func(error)
	signals chan signal
	done    chan struct{}

	mu        sync.Mutex
	nodes     map[string]*NodeResult
	completed map[graph.Port]bool
	// blocked holds pending nodes that can no longer run; their outputs
	// are already closed
	blocked map[string]bool

	result Result
}

func newRun(id uuid.UUID, g *graph.Graph, inputs Inputs, e *Executor, ctx context.Context, cancel func(error)) *Run {
	capacity := 0
	nodes := make(map[string]*NodeResult)
	for _, n := range g.Nodes() {
		capacity += n.Type.Outputs.Len() + 1
		nodes[n.ID] = &NodeResult{State: Pending}
	}
	return &Run{
		id:        id,
		graph:     g,
		inputs:    maps.Clone(inputs),
		exec:      e,
		logger:    e.logger.With(slogx.RunID(id)),
		ctx:       ctx,
		cancel:    cancel,
		signals:   make(chan signal, capacity),
		done:      make(chan struct{}),
		nodes:     nodes,
		completed: make(map[graph.Port]bool),
		blocked:   make(map[string]bool),
	}
}

func (r *Run) ID() uuid.UUID {
	return r.id
}

// Done is closed once the run finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finished or ctx is done. The returned error is
// ctx's error or the result's Err.
func (r *Run) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.result, r.result.Err()
	case <-ctx.Done():
		return Result{RunID: r.id, Status: StatusRunning}, ctx.Err()
	}
}

// State returns the current state of a node. Unknown nodes report Pending.
func (r *Run) State(node string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[node]; ok {
		return n.State
	}
	return Pending
}

// Cancel cancels the run. Running nodes see their context cancelled and are
// expected to stop publishing.
func (r *Run) Cancel() {
	r.cancel(ErrRunCancelled)
}

// Release cancels the run if it is still going, waits for it to finish and
// drops its values from the graph's providers.
func (r *Run) Release() {
	r.Cancel()
	<-r.done
	for _, p := range r.graph.Providers() {
		p.Forget(r.id)
	}
}

func (r *Run) setState(node *graph.Node, state State, err error) {
	r.mu.Lock()
	n := r.nodes[node.ID]
	n.State = state
	switch state {
	case Running:
		n.Started = time.Now()
	case Completed, Failed, Cancelled:
		n.Finished = time.Now()
		n.Err = err
	}
	r.mu.Unlock()

	data := map[string]any{"state": state.String()}
	if err != nil {
		data["error"] = err.Error()
	}
	r.publishRender(node, render.StepNodeState, data)
	r.logger.Debug("node state", slogx.NodeID(node.ID), slog.String("state", state.String()), slogx.Error(err))
}

func (r *Run) state(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes[id].State
}

func (r *Run) publishRender(node *graph.Node, step string, data any) {
	// render updates must not be held up by the run's cancellation
	ctx := context.WithoutCancel(r.ctx)
	if err := r.exec.render.Publish(ctx, render.NewUpdate(r.id, node.Ref(), step, data)); err != nil {
		r.logger.Debug("render update not published", slogx.NodeID(node.ID), slogx.Error(err))
	}
}

// available reports whether the terminal value of in is known for this run,
// either published by the producer or as the slot's run-independent value.
// Callers hold r.mu.
func (r *Run) available(in graph.Input) bool {
	if in.Constant() || r.completed[*in.From] {
		return true
	}
	_, ok := in.Provider.Global()
	return ok
}

// ready reports whether node can start. A node without streaming inputs needs
// every input available. A node that streams starts as soon as its streaming
// producers run; its other inputs are awaited when it reads them, as long as
// their producers can still deliver.
func (r *Run) ready(node *graph.Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blocked[node.ID] {
		return false
	}

	streams := false
	for _, in := range node.Inputs() {
		if in.Streaming {
			streams = true
			break
		}
	}

	for _, in := range node.Inputs() {
		if r.available(in) {
			continue
		}
		producer := r.nodes[in.From.Node].State
		switch {
		case in.Streaming && (producer == Running || producer == Completed):
		case streams && !in.Streaming && !r.blocked[in.From.Node] && producer != Failed && producer != Cancelled:
		default:
			return false
		}
	}
	return true
}

// closeBlocked closes the outputs of every pending node that can no longer
// run because an input it still needs comes from a failed or blocked node.
// Consumers already waiting on those outputs are released instead of waiting
// for the run to end.
func (r *Run) closeBlocked() {
	for _, node := range r.graph.Nodes() {
		r.mu.Lock()
		stuck := false
		if r.nodes[node.ID].State == Pending && !r.blocked[node.ID] {
			for _, in := range node.Inputs() {
				if r.available(in) {
					continue
				}
				if s := r.nodes[in.From.Node].State; s == Failed || s == Cancelled || r.blocked[in.From.Node] {
					stuck = true
					break
				}
			}
		}
		if stuck {
			r.blocked[node.ID] = true
		}
		r.mu.Unlock()

		if stuck {
			r.closeOutputs(node, r.blockedBy(node))
		}
	}
}

// drive schedules nodes until nothing more can happen, then settles the
// remaining output slots and records the result.
func (r *Run) drive() {
	defer close(r.done)

	var eg errgroup.Group
	if r.exec.maxConcurrency > 0 {
		eg.SetLimit(r.exec.maxConcurrency)
	}

	nodes := r.graph.Nodes()
	running := 0
	cancelled := false

	for {
		if !cancelled && r.ctx.Err() != nil {
			cancelled = true
			r.cancelPending(nodes)
		}

		if !cancelled {
			// one pass in execution order suffices: starting a node can only
			// unblock streaming consumers placed after it
			for _, node := range nodes {
				if r.state(node.ID) != Pending || !r.ready(node) {
					continue
				}
				r.setState(node, Ready, nil)
				r.setState(node, Running, nil)
				running++
				eg.Go(func() error {
					err := r.compute(node)
					r.signals <- signal{kind: nodeFinished, node: node.ID, err: err}
					return nil
				})
			}
		}

		if running == 0 {
			break
		}

		select {
		case sig := <-r.signals:
			r.handle(sig, &running)
		case <-r.ctxDone(cancelled):
		}
	}

	_ = eg.Wait()
	r.finish(nodes, cancelled)
}

func (r *Run) ctxDone(cancelled bool) <-chan struct{} {
	if cancelled {
		return nil
	}
	return r.ctx.Done()
}

func (r *Run) handle(sig signal, running *int) {
	switch sig.kind {
	case slotCompleted:
		r.mu.Lock()
		r.completed[graph.Port{Node: sig.node, Slot: sig.slot}] = true
		r.mu.Unlock()

	case nodeFinished:
		*running--
		node, _ := r.graph.Node(sig.node)
		switch {
		case sig.err == nil:
			r.setState(node, Completed, nil)
		case r.ctx.Err() != nil:
			r.setState(node, Cancelled, sig.err)
		default:
			failure := &NodeFailedError{Node: node.ID, Err: sig.err}
			r.setState(node, Failed, failure)
			r.closeOutputs(node, failure)
			r.logger.Warn("node failed", slogx.NodeID(node.ID), slogx.Error(sig.err))
			r.closeBlocked()
		}
	}
}

// cancelPending marks every node that has not started as cancelled and
// cancels the run on every output slot.
func (r *Run) cancelPending(nodes []*graph.Node) {
	cause := context.Cause(r.ctx)
	for _, node := range nodes {
		if s := r.state(node.ID); s == Pending || s == Ready {
			r.setState(node, Cancelled, cause)
		}
		for _, p := range node.Outputs() {
			p.Cancel(r.id)
		}
	}
	r.logger.Info("run cancelled", slogx.Error(cause))
}

func (r *Run) closeOutputs(node *graph.Node, cause error) {
	for _, p := range node.Outputs() {
		p.Close(r.id, cause)
	}
}

func (r *Run) finish(nodes []*graph.Node, cancelled bool) {
	status := StatusCompleted
	var cause error
	if cancelled {
		status = StatusCancelled
		cause = context.Cause(r.ctx)
	} else {
		for _, node := range nodes {
			if r.state(node.ID) == Completed {
				continue
			}
			status = StatusPartiallyFailed
			if r.state(node.ID) == Pending {
				blocked := r.blockedBy(node)
				r.closeOutputs(node, blocked)
			}
		}
	}

	r.mu.Lock()
	results := make(map[string]NodeResult, len(r.nodes))
	for id, n := range r.nodes {
		results[id] = *n
	}
	r.mu.Unlock()

	r.result = Result{RunID: r.id, Status: status, Nodes: results, Cause: cause}
}

// blockedBy finds the first failed node upstream of node, walking
// dependencies in creation order.
func (r *Run) blockedBy(node *graph.Node) error {
	seen := map[string]bool{}
	var walk func(id string) error
	walk = func(id string) error {
		for _, dep := range r.graph.Dependencies(id) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			r.mu.Lock()
			n := r.nodes[dep]
			state, err := n.State, n.Err
			r.mu.Unlock()
			if state == Failed {
				return &UpstreamFailedError{Node: node.ID, Upstream: dep, Err: err}
			}
			if found := walk(dep); found != nil {
				return found
			}
		}
		return nil
	}
	if err := walk(node.ID); err != nil {
		return err
	}
	return fmt.Errorf("node %q did not run", node.ID)
}
