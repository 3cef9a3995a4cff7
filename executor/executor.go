package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/casualjim/reagent/graph"
	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/casualjim/reagent/pkg/uuidx"
	"github.com/casualjim/reagent/render"
	"github.com/fogfish/opts"
)

var (
	// WithRenderChannel sets where nodes' render updates and node state
	// changes are published. Without it they are discarded.
	WithRenderChannel = opts.ForName[Executor, render.Channel]("render")
	// WithMaxConcurrency bounds how many nodes of one run compute at the same
	// time. Zero or less means no bound.
	WithMaxConcurrency = opts.ForName[Executor, int]("maxConcurrency")
	// WithRunTimeout cancels runs that take longer than the given duration.
	WithRunTimeout = opts.ForName[Executor, time.Duration]("runTimeout")
	WithLogger     = opts.ForName[Executor, *slog.Logger]("logger")
)

// Inputs are the values a run is started with, read by nodes through
// Call.RunInput.
type Inputs map[string]any

// Executor starts runs of graphs. It holds no per run state and may be shared.
type Executor struct {
	render         render.Channel
	maxConcurrency int
	runTimeout     time.Duration
	logger         *slog.Logger
}

func New(options ...opts.Option[Executor]) *Executor {
	e := &Executor{}
	if err := opts.Apply(e, options); err != nil {
		panic(err)
	}
	if e.render == nil {
		e.render = render.Discard()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Execute starts a run of g and returns without waiting for it. The run is
// cancelled when ctx is done.
func (e *Executor) Execute(ctx context.Context, g *graph.Graph, inputs Inputs) (*Run, error) {
	if g == nil {
		return nil, errors.New("graph is required")
	}

	runID := uuidx.New()
	runCtx, cancel := context.WithCancelCause(ctx)
	stop := func() {}
	if e.runTimeout > 0 {
		runCtx, stop = context.WithTimeout(runCtx, e.runTimeout)
	}

	r := newRun(runID, g, inputs, e, runCtx, func(cause error) {
		cancel(cause)
	})
	r.logger.InfoContext(ctx, "run started", slog.Int("nodes", len(g.Nodes())))

	go func() {
		defer stop()
		defer cancel(nil)
		r.drive()
		res := r.result
		r.logger.InfoContext(ctx, "run finished",
			slog.String("status", res.Status.String()),
			slogx.Error(res.Err()),
		)
	}()
	return r, nil
}
