package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/casualjim/reagent/pkg/uuidx"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject updates are published on unless
// configured otherwise.
const DefaultSubject = "reagent.render"

// NATSChannel sends updates over core NATS, which is fire and forget: an
// update published while no process is subscribed is lost.
type NATSChannel struct {
	client  *nats.Conn
	subject string
}

func NATS(client *nats.Conn, subject string) *NATSChannel {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSChannel{client: client, subject: subject}
}

func (c *NATSChannel) Publish(ctx context.Context, u Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Publish(c.subject, b)
}

func (c *NATSChannel) Subscribe(ctx context.Context, hook Hook, filters ...Filter) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	sub := &natsSubscription{
		id:      uuidx.NewString(),
		ctx:     ctx,
		channel: make(chan Update, defaultBufferSize),
		done:    make(chan struct{}),
		hook:    hook,
	}
	nsub, err := c.client.Subscribe(c.subject, func(msg *nats.Msg) {
		var u Update
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			slog.Error("failed to unmarshal render update", slogx.Error(err))
			return
		}
		if !matches(filters, u) {
			return
		}
		select {
		case sub.channel <- u:
		case <-sub.done:
		default:
			// full: drop like the local channel does
		}
	})
	if err != nil {
		return nil, err
	}
	sub.sub = nsub

	go sub.forwardToHook()
	return sub, nil
}

type natsSubscription struct {
	id        string
	ctx       context.Context
	sub       *nats.Subscription
	channel   chan Update
	done      chan struct{}
	closeOnce sync.Once
	hook      Hook
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	n.closeOnce.Do(func() {
		close(n.done)
		if err := n.sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
		}
	})
}

func (n *natsSubscription) forwardToHook() {
	defer n.Unsubscribe()
	for {
		select {
		case u := <-n.channel:
			n.hook.OnUpdate(n.ctx, u)
		case <-n.done:
			return
		case <-n.ctx.Done():
			return
		}
	}
}
