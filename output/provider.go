package output

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/casualjim/reagent/internal/future"
	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

const defaultBufferSize = 64

var (
	// WithBufferSize sets how many undelivered events a subscriber may queue
	// before publishers block.
	WithBufferSize = opts.ForName[Provider, int]("bufferSize")
	WithLogger     = opts.ForName[Provider, *slog.Logger]("logger")
)

// Provider is the event log of one output slot. It is safe for concurrent
// use by any number of runs; each run must have a single publisher.
type Provider struct {
	slot       string
	bufferSize int
	logger     *slog.Logger

	mu       sync.Mutex
	seq      uint64
	global   *Event
	waiters  []future.Promise[any]
	runs     map[uuid.UUID]*runLog
	subs     map[string]*subscription
	released bool
	// forgotten holds the ids of runs dropped by Forget
	forgotten map[uuid.UUID]struct{}
}

type runLog struct {
	partials  []Event
	terminal  *Event
	abort     *Event
	cancelled bool
	closed    error
	waiters   []future.Promise[any]
}

func (r *runLog) finished() bool {
	return r.terminal != nil || r.abort != nil
}

// New creates the provider for slot, a label such as "chat-1.markdown" used
// in errors and logs.
func New(slot string, options ...opts.Option[Provider]) *Provider {
	p := &Provider{
		slot:       slot,
		bufferSize: defaultBufferSize,
		runs:       make(map[uuid.UUID]*runLog),
		subs:       make(map[string]*subscription),
		forgotten:  make(map[uuid.UUID]struct{}),
	}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	if p.bufferSize < 1 {
		p.bufferSize = 1
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With(slog.String("slot", slot))
	return p
}

func (p *Provider) Slot() string {
	return p.slot
}

// Global returns the run-independent value, if one was published.
func (p *Provider) Global() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.global == nil {
		return nil, false
	}
	return p.global.Value, true
}

func (p *Provider) isForgotten(id uuid.UUID) bool {
	_, ok := p.forgotten[id]
	return ok
}

func (p *Provider) run(id uuid.UUID) *runLog {
	r, ok := p.runs[id]
	if !ok {
		r = &runLog{}
		p.runs[id] = r
	}
	return r
}

func (p *Provider) next(runID uuid.UUID) Event {
	p.seq++
	return Event{RunID: runID, Seq: p.seq, Timestamp: strfmt.DateTime(time.Now())}
}

// Publish appends value to the log of runID. Run-independent values
// (uuid.Nil) may be published once and are always terminal. Publish blocks
// while a subscriber's buffer is full, until ctx is done.
func (p *Provider) Publish(ctx context.Context, runID uuid.UUID, value any, terminal bool) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return ErrReleased
	}

	if runID == uuid.Nil {
		if p.global != nil {
			p.mu.Unlock()
			return &DoubleTerminalError{Slot: p.slot, RunID: runID}
		}
		event := p.next(runID)
		event.Value, event.Terminal = value, true
		p.global = &event

		waiters := p.waiters
		p.waiters = nil
		for _, r := range p.runs {
			if !r.finished() && !r.cancelled && r.closed == nil {
				waiters = append(waiters, r.waiters...)
				r.waiters = nil
			}
		}
		subs := p.subscribers()
		p.mu.Unlock()

		for _, w := range waiters {
			w.Complete(value)
		}
		return p.deliverCommitted(ctx, subs, event)
	}

	if p.isForgotten(runID) {
		p.mu.Unlock()
		return &RunClosedError{Slot: p.slot, RunID: runID}
	}
	r := p.run(runID)
	switch {
	case r.cancelled:
		p.mu.Unlock()
		return &RunCancelledError{Slot: p.slot, RunID: runID}
	case r.terminal != nil:
		p.mu.Unlock()
		return &DoubleTerminalError{Slot: p.slot, RunID: runID}
	case r.closed != nil:
		p.mu.Unlock()
		return &RunClosedError{Slot: p.slot, RunID: runID}
	}

	event := p.next(runID)
	event.Value, event.Terminal = value, terminal
	var waiters []future.Promise[any]
	if terminal {
		r.terminal = &event
		r.partials = nil
		waiters, r.waiters = r.waiters, nil
	} else {
		r.partials = append(r.partials, event)
	}
	subs := p.subscribers()
	p.mu.Unlock()

	for _, w := range waiters {
		w.Complete(value)
	}
	return p.deliverCommitted(ctx, subs, event)
}

// deliverCommitted hands a logged event to subscribers. A terminal event is
// already visible to selects, so when ctx ends first its delivery moves to
// the background and the publish still succeeds. A partial event that could
// not be delivered fails the publish.
func (p *Provider) deliverCommitted(ctx context.Context, subs []*subscription, event Event) error {
	rest, err := p.deliver(ctx, subs, event)
	if err == nil {
		return nil
	}
	if !event.Terminal {
		p.logDropped(event.RunID, err)
		return err
	}
	p.logger.Debug("terminal event delivered in background", slogx.RunID(event.RunID), slogx.Error(err))
	go func() {
		_, _ = p.deliver(context.Background(), rest, event)
	}()
	return nil
}

// Cancel marks runID as cancelled on this slot. Pending selects reject with
// RunCancelledError and later publishes fail. Cancelling a run that already
// has a terminal value does nothing.
func (p *Provider) Cancel(runID uuid.UUID) {
	if runID == uuid.Nil {
		return
	}
	cause := &RunCancelledError{Slot: p.slot, RunID: runID}

	p.mu.Lock()
	if p.released || p.isForgotten(runID) {
		p.mu.Unlock()
		return
	}
	r := p.run(runID)
	if r.finished() || r.cancelled {
		p.mu.Unlock()
		return
	}
	r.cancelled = true
	p.abortLocked(r, runID, cause)
}

// Close marks runID as finished on this slot without a value. Pending
// selects reject with RunNotFoundError wrapping cause, later publishes fail
// with RunClosedError. Closing a run that has a terminal value does nothing.
func (p *Provider) Close(runID uuid.UUID, cause error) {
	if runID == uuid.Nil {
		return
	}
	if cause == nil {
		cause = ErrNoValue
	}

	p.mu.Lock()
	if p.released || p.isForgotten(runID) {
		p.mu.Unlock()
		return
	}
	r := p.run(runID)
	if r.finished() || r.cancelled {
		p.mu.Unlock()
		return
	}
	r.closed = cause
	p.abortLocked(r, runID, &RunNotFoundError{Slot: p.slot, RunID: runID, Cause: cause})
}

// abortLocked records the abort event, rejects waiters and notifies
// subscribers. It releases p.mu.
func (p *Provider) abortLocked(r *runLog, runID uuid.UUID, err error) {
	event := p.next(runID)
	event.Err = err
	r.abort = &event
	waiters := r.waiters
	r.waiters = nil
	subs := p.subscribers()
	p.mu.Unlock()

	for _, w := range waiters {
		w.Error(err)
	}
	if len(subs) > 0 {
		// Aborts are the last event of a run; earlier events of the run were
		// already handed to every subscriber by the time Publish returned.
		go func() {
			_, _ = p.deliver(context.Background(), subs, event)
		}()
	}
}

// Forget drops the log of a finished run. Selects pending on it, and any
// made later, reject with RunNotFoundError wrapping ErrForgotten. Only the
// run id is remembered.
func (p *Provider) Forget(runID uuid.UUID) {
	if runID == uuid.Nil {
		return
	}
	p.mu.Lock()
	p.forgotten[runID] = struct{}{}
	r, ok := p.runs[runID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.runs, runID)
	waiters := r.waiters
	p.mu.Unlock()

	for _, w := range waiters {
		w.Error(&RunNotFoundError{Slot: p.slot, RunID: runID, Cause: ErrForgotten})
	}
}

// Release ends every subscription and rejects every pending select. The
// provider refuses all publishes afterwards.
func (p *Provider) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	type pending struct {
		runID   uuid.UUID
		waiters []future.Promise[any]
	}
	all := []pending{{runID: uuid.Nil, waiters: p.waiters}}
	p.waiters = nil
	for id, r := range p.runs {
		all = append(all, pending{runID: id, waiters: r.waiters})
		r.waiters = nil
	}
	subs := p.subscribers()
	p.mu.Unlock()

	for _, pw := range all {
		for _, w := range pw.waiters {
			w.Error(&RunNotFoundError{Slot: p.slot, RunID: pw.runID, Cause: ErrReleased})
		}
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	p.logger.Debug("output provider released")
}

// Runs returns the ids of the runs currently held in the log.
func (p *Provider) Runs() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	return ids
}

// Events returns the compacted log: the run-independent value first, then
// per run either its terminal value or its partials followed by the abort.
// Events are ordered by sequence number.
func (p *Provider) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Provider) snapshot() []Event {
	var events []Event
	if p.global != nil {
		events = append(events, *p.global)
	}
	for _, r := range p.runs {
		if r.terminal != nil {
			events = append(events, *r.terminal)
			continue
		}
		events = append(events, r.partials...)
		if r.abort != nil {
			events = append(events, *r.abort)
		}
	}
	sortBySeq(events)
	return events
}

func (p *Provider) logDropped(runID uuid.UUID, err error) {
	p.logger.Debug("event not delivered", slogx.RunID(runID), slogx.Error(err))
}

func sortBySeq(events []Event) {
	slices.SortFunc(events, func(a, b Event) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
}
