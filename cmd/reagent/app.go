package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casualjim/reagent/agentfile"
	"github.com/casualjim/reagent/executor"
	"github.com/casualjim/reagent/graph"
	"github.com/casualjim/reagent/nodes"
	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/output"
	"github.com/casualjim/reagent/pkg/natsx"
	"github.com/casualjim/reagent/provider"
	"github.com/casualjim/reagent/provider/openai"
	"github.com/casualjim/reagent/render"
	"github.com/fogfish/opts"
	"github.com/spf13/cobra"
)

type appFlags struct {
	agents      []string
	model       string
	streamFrom  string
	answerFrom  string
	subject     string
	timeout     time.Duration
	concurrency int
	verbose     bool
	trace       bool
	dump        bool
	markdown    bool
}

func (f *appFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringSliceVarP(&f.agents, "agent", "a", nil, "agent files or directories to load instead of the demo agent")
	pf.StringVarP(&f.model, "model", "m", "gpt-4o-mini", "model passed to the agent as the model input")
	pf.StringVar(&f.streamFrom, "stream-from", "chat-1.stream", "output slot printed while it streams")
	pf.StringVar(&f.answerFrom, "answer-from", "user.markdown", "output slot holding the final answer")
	pf.StringVar(&f.subject, "subject", render.DefaultSubject, "NATS subject for render updates when NATS_URL is set")
	pf.DurationVar(&f.timeout, "timeout", 2*time.Minute, "cancel runs that take longer than this")
	pf.IntVar(&f.concurrency, "concurrency", 0, "maximum number of nodes computing at once, 0 for no limit")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
	pf.BoolVar(&f.trace, "trace", false, "log every output event and render update")
	pf.BoolVar(&f.dump, "dump", false, "pretty print run results")
	pf.BoolVar(&f.markdown, "markdown", false, "render the final answer as markdown")
}

// modelCatalog lists the models agents can name in their model input.
var modelCatalog = func() *provider.Models {
	return openai.Catalog()
}

type app struct {
	flags    *appFlags
	registry *nodetype.Registry
	models   *provider.Models
	graph    *graph.Graph
	exec     *executor.Executor
	render   render.Channel
	closers  []func()
}

func newApp(ctx context.Context, flags *appFlags) (*app, error) {
	a := &app{
		flags:    flags,
		registry: nodetype.NewRegistry(),
		models:   modelCatalog(),
	}
	if err := nodes.RegisterCore(a.registry, a.models); err != nil {
		return nil, err
	}

	var builderOptions []opts.Option[graph.Builder]
	if flags.trace {
		builderOptions = append(builderOptions, graph.WithProviderOptions(output.WithLogger(slog.Default().With("component", "output"))))
	}

	var err error
	if len(flags.agents) > 0 {
		a.graph, err = agentfile.New(a.registry, agentfile.WithBuilderOptions(builderOptions...)).Load(ctx, flags.agents...)
	} else {
		a.graph, err = nodes.Demo(a.registry, builderOptions...)
	}
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.graph.Release)

	if err := a.setupRender(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if flags.trace {
		if err := a.traceOutputs(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.exec = executor.New(
		executor.WithRenderChannel(a.render),
		executor.WithRunTimeout(flags.timeout),
		executor.WithMaxConcurrency(flags.concurrency),
	)
	return a, nil
}

func (a *app) setupRender(ctx context.Context) error {
	if natsx.Configured() {
		nc, err := natsx.NewClient()
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		a.closers = append(a.closers, nc.Close)
		a.render = render.NATS(nc, a.flags.subject)
		slog.InfoContext(ctx, "publishing render updates to nats", slog.String("subject", a.flags.subject))
	} else {
		a.render = render.Local()
	}

	if a.flags.trace {
		sub, err := a.render.Subscribe(ctx, render.LoggingHook(slog.Default()))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, sub.Unsubscribe)
	}
	return nil
}

func (a *app) traceOutputs(ctx context.Context) error {
	for _, node := range a.graph.Nodes() {
		for _, p := range node.Outputs() {
			sub, err := p.Subscribe(ctx, output.LoggingHook(slog.Default(), p.Slot()))
			if err != nil {
				return err
			}
			a.closers = append(a.closers, sub.Unsubscribe)
		}
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) output(ref string) (*output.Provider, error) {
	node, slot, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, fmt.Errorf("output %q must have the form node.slot", ref)
	}
	return a.graph.Output(node, slot)
}

// turn runs the graph once for query, printing the streamed answer to the
// console as it arrives, and returns the final answer.
func (a *app) turn(ctx context.Context, console *console, query string) (string, executor.Result, error) {
	answers, err := a.output(a.flags.answerFrom)
	if err != nil {
		return "", executor.Result{}, err
	}
	stream, err := a.output(a.flags.streamFrom)
	if err != nil {
		return "", executor.Result{}, err
	}

	run, err := a.exec.Execute(ctx, a.graph, executor.Inputs{"model": a.flags.model, "query": query})
	if err != nil {
		return "", executor.Result{}, err
	}
	defer run.Release()

	printer := console.streamer()
	sub, err := stream.Subscribe(ctx, output.ForRun(run.ID(), printer))
	if err != nil {
		run.Cancel()
		return "", executor.Result{}, err
	}
	defer sub.Unsubscribe()

	answer, selectErr := output.SelectAs[string](ctx, answers, run.ID())
	res, err := run.Wait(ctx)
	if err != nil {
		return "", res, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	printer.wait(waitCtx)
	cancel()

	if selectErr != nil {
		if resErr := res.Err(); resErr != nil {
			return "", res, errors.Join(selectErr, resErr)
		}
		return "", res, selectErr
	}
	return answer, res, nil
}
