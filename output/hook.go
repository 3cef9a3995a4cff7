package output

import (
	"context"
	"log/slog"

	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/google/uuid"
)

// Hook receives the events of a subscription, one at a time and in order.
type Hook interface {
	OnEvent(ctx context.Context, event Event)
}

type HookFunc func(ctx context.Context, event Event)

func (f HookFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// ForRun only forwards events of runID and run-independent events.
func ForRun(runID uuid.UUID, hook Hook) Hook {
	return HookFunc(func(ctx context.Context, event Event) {
		if event.RunID == runID || event.Global() {
			hook.OnEvent(ctx, event)
		}
	})
}

// LoggingHook writes every event to a logger at debug level.
func LoggingHook(logger *slog.Logger, slot string) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return HookFunc(func(ctx context.Context, event Event) {
		logger.DebugContext(ctx, "output event",
			slog.String("slot", slot),
			slogx.RunID(event.RunID),
			slog.Uint64("seq", event.Seq),
			slog.Bool("terminal", event.Terminal),
			slog.Any("value", event.Value),
			slogx.Error(event.Err),
		)
	})
}
