package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/casualjim/reagent/pkg/uuidx"
	"github.com/fogfish/opts"
)

const defaultBufferSize = 50

var (
	WithBufferSize = opts.ForName[LocalChannel, int]("bufferSize")
	WithLogger     = opts.ForName[LocalChannel, *slog.Logger]("logger")
)

// LocalChannel is an in-process Channel. Each subscriber has a bounded
// buffer; updates that don't fit are dropped for that subscriber.
type LocalChannel struct {
	subscriptions *haxmap.Map[string, *subscription]
	bufferSize    int
	logger        *slog.Logger
	dropped       atomic.Uint64
}

func Local(options ...opts.Option[LocalChannel]) *LocalChannel {
	c := &LocalChannel{
		subscriptions: haxmap.New[string, *subscription](),
		bufferSize:    defaultBufferSize,
	}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	if c.bufferSize < 1 {
		c.bufferSize = 1
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (c *LocalChannel) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *LocalChannel) Publish(ctx context.Context, u Update) error {
	c.subscriptions.ForEach(func(id string, sub *subscription) bool {
		if sub == nil || !matches(sub.filters, u) {
			return true
		}

		select {
		case <-sub.done:
			return true
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		select {
		case sub.channel <- u:
		default:
			c.dropped.Add(1)
			c.logger.DebugContext(ctx, "render update dropped",
				slog.String("subscription", id),
				slogx.RunID(u.RunID),
				slogx.NodeID(u.Node.ID),
			)
		}
		return true
	})
	return nil
}

func (c *LocalChannel) Subscribe(ctx context.Context, hook Hook, filters ...Filter) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	id := uuidx.NewString()
	sub := &subscription{
		id:      id,
		ctx:     ctx,
		channel: make(chan Update, c.bufferSize),
		done:    make(chan struct{}),
		onClose: func() { c.subscriptions.Del(id) },
		hook:    hook,
		filters: filters,
	}
	c.subscriptions.Set(id, sub)
	go sub.forwardToHook()
	return sub, nil
}

type subscription struct {
	id        string
	ctx       context.Context
	channel   chan Update
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
	hook      Hook
	filters   []Filter
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
}

func (s *subscription) forwardToHook() {
	defer s.Unsubscribe()
	for {
		select {
		case u := <-s.channel:
			s.hook.OnUpdate(s.ctx, u)
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		}
	}
}
