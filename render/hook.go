package render

import (
	"context"
	"log/slog"
	"slices"

	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/google/uuid"
)

// Hook receives updates of a subscription in publication order.
type Hook interface {
	OnUpdate(ctx context.Context, update Update)
}

type HookFunc func(ctx context.Context, update Update)

func (f HookFunc) OnUpdate(ctx context.Context, update Update) {
	f(ctx, update)
}

// CompositeHook forwards every update to each of its hooks in turn.
type CompositeHook []Hook

func (c CompositeHook) OnUpdate(ctx context.Context, update Update) {
	for _, h := range c {
		h.OnUpdate(ctx, update)
	}
}

// LoggingHook logs every update at debug level.
func LoggingHook(logger *slog.Logger) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return HookFunc(func(ctx context.Context, u Update) {
		logger.DebugContext(ctx, "render update",
			slogx.RunID(u.RunID),
			slogx.NodeID(u.Node.ID),
			slog.String("step", u.Render.Step),
			slog.Any("data", u.Render.Data),
		)
	})
}

// Filter selects the updates a subscription receives.
type Filter func(Update) bool

func ForRun(runID uuid.UUID) Filter {
	return func(u Update) bool { return u.RunID == runID }
}

func ForNode(nodeID string) Filter {
	return func(u Update) bool { return u.Node.ID == nodeID }
}

func ForStep(steps ...string) Filter {
	return func(u Update) bool { return slices.Contains(steps, u.Render.Step) }
}

func matches(filters []Filter, u Update) bool {
	for _, f := range filters {
		if !f(u) {
			return false
		}
	}
	return true
}
