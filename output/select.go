package output

import (
	"context"
	"fmt"
	"reflect"

	"github.com/casualjim/reagent/internal/future"
	"github.com/casualjim/reagent/pkg/stdx"
	"github.com/google/uuid"
)

// Select returns a future for the terminal value of runID. A value published
// for the run wins over the run-independent one. The future rejects with
// RunCancelledError when the run is cancelled and with RunNotFoundError when
// the run is closed without a value or was forgotten; otherwise it stays
// pending.
//
// Selecting uuid.Nil waits for the run-independent value.
func (p *Provider) Select(runID uuid.UUID) future.Future[any] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if runID == uuid.Nil {
		if p.global != nil {
			return future.Resolved(p.global.Value)
		}
		if p.released {
			return future.Rejected[any](&RunNotFoundError{Slot: p.slot, RunID: runID, Cause: ErrReleased})
		}
		f := future.New[any]()
		p.waiters = append(p.waiters, f)
		return f
	}

	r, ok := p.runs[runID]
	if ok && r.terminal != nil {
		return future.Resolved(r.terminal.Value)
	}
	if p.global != nil {
		return future.Resolved(p.global.Value)
	}
	if ok && r.abort != nil {
		return future.Rejected[any](r.abort.Err)
	}
	if p.isForgotten(runID) {
		return future.Rejected[any](&RunNotFoundError{Slot: p.slot, RunID: runID, Cause: ErrForgotten})
	}
	if p.released {
		return future.Rejected[any](&RunNotFoundError{Slot: p.slot, RunID: runID, Cause: ErrReleased})
	}

	r = p.run(runID)
	f := future.New[any]()
	r.waiters = append(r.waiters, f)
	return f
}

// SelectContext waits for Select(runID) or for ctx to be done.
func (p *Provider) SelectContext(ctx context.Context, runID uuid.UUID) (any, error) {
	return p.Select(runID).Await(ctx)
}

// SelectAs waits for the terminal value of runID and converts it to T.
func SelectAs[T any](ctx context.Context, p *Provider, runID uuid.UUID) (T, error) {
	v, err := p.SelectContext(ctx, runID)
	if err != nil {
		return stdx.Zero[T](), err
	}
	typed, ok := stdx.As[T](v)
	if !ok {
		return stdx.Zero[T](), fmt.Errorf("%s: value of type %T is not a %v", p.slot, v, reflect.TypeFor[T]())
	}
	return typed, nil
}
