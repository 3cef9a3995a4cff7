package nodetype

import (
	"context"
	"iter"
	"log/slog"

	"github.com/google/uuid"
)

// Chunk is one value read from a streaming input.
type Chunk struct {
	Value    any
	Terminal bool
}

// Call is the view a compute function has of its node during one run. The
// executor implements it.
type Call interface {
	RunID() uuid.UUID
	Node() NodeRef
	Config() Config

	// Input returns the terminal value bound to a non-streaming input slot,
	// waiting for it when the node started early to follow a stream. ok is
	// false for optional slots that were left unbound and for values that
	// will never arrive.
	Input(slot string) (value any, ok bool)
	// Stream yields the partial values of a streaming input in publication
	// order, finishing with the terminal value. It ends early with an error when
	// the producer fails or the run is cancelled.
	Stream(slot string) iter.Seq2[Chunk, error]
	// RunInput returns a value supplied when the run was started.
	RunInput(key string) (value any, ok bool)

	// Emit publishes a partial value on a streaming output.
	Emit(ctx context.Context, slot string, value any) error
	// Complete publishes the terminal value of an output.
	Complete(ctx context.Context, slot string, value any) error
	// Render sends an advisory progress notification; it may be dropped.
	Render(ctx context.Context, step string, data any)

	Logger() *slog.Logger
}
