// Package future provides the write-once Future/Promise pair that backs
// output selection: producers settle a promise exactly once, any number of
// readers block on the future.
package future

import (
	"context"
	"sync"

	"github.com/casualjim/reagent/pkg/stdx"
)

// Future is the read side of a single asynchronous result.
type Future[T any] interface {
	// Get blocks until the future is settled.
	Get() (T, error)
	// Await blocks until the future is settled or ctx is done.
	Await(context.Context) (T, error)
	// Done is closed once the future is settled.
	Done() <-chan struct{}
}

// Promise is the write side. The first call to Complete or Error wins; later
// calls report false and change nothing.
type Promise[T any] interface {
	Complete(T) bool
	Error(error) bool
}

type CompletableFuture[T any] interface {
	Future[T]
	Promise[T]
}

type future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New returns an unsettled future.
func New[T any]() CompletableFuture[T] {
	return &future[T]{done: make(chan struct{})}
}

// Resolved returns a future already completed with v.
func Resolved[T any](v T) Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

// Rejected returns a future already failed with err.
func Rejected[T any](err error) Future[T] {
	f := New[T]()
	f.Error(err)
	return f
}

func (f *future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

func (f *future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return stdx.Zero[T](), ctx.Err()
	}
}

func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *future[T]) Complete(v T) bool {
	return f.settle(v, nil)
}

func (f *future[T]) Error(err error) bool {
	return f.settle(stdx.Zero[T](), err)
}

func (f *future[T]) settle(v T, err error) bool {
	won := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		won = true
		close(f.done)
	})
	return won
}
