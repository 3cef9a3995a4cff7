package output

import (
	"context"
	"fmt"
	"sync"

	"github.com/casualjim/reagent/pkg/uuidx"
)

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	ID() string
	Unsubscribe()
	// Done is closed once the subscription ended, either through Unsubscribe,
	// the subscription context or the provider being released.
	Done() <-chan struct{}
}

// Subscribe registers hook for every past and future event of the slot. Past
// events are replayed compacted: a run with a terminal value replays only that
// value. The hook runs on a dedicated goroutine; while it is busy, events
// queue up to the buffer size and then publishers wait.
func (p *Provider) Subscribe(ctx context.Context, hook Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	id := uuidx.NewString()
	sub := &subscription{
		id:      id,
		ctx:     ctx,
		hook:    hook,
		channel: make(chan Event, p.bufferSize),
		done:    make(chan struct{}),
	}
	sub.onClose = func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}

	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil, ErrReleased
	}
	sub.replay = p.snapshot()
	p.subs[id] = sub
	p.mu.Unlock()

	go sub.forwardToHook()
	return sub, nil
}

func (p *Provider) subscribers() []*subscription {
	subs := make([]*subscription, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	return subs
}

// deliver hands event to every subscriber, waiting for buffer space. When ctx
// ends first it returns the subscribers that did not get the event.
func (p *Provider) deliver(ctx context.Context, subs []*subscription, event Event) ([]*subscription, error) {
	for i, sub := range subs {
		select {
		case sub.channel <- event:
		case <-sub.done:
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case <-ctx.Done():
			return subs[i:], fmt.Errorf("%s: deliver to %s: %w", p.slot, sub.id, ctx.Err())
		}
	}
	return nil, nil
}

type subscription struct {
	id        string
	ctx       context.Context
	hook      Hook
	replay    []Event
	channel   chan Event
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
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

	for _, event := range s.replay {
		if s.stopped() {
			return
		}
		s.hook.OnEvent(s.ctx, event)
	}
	s.replay = nil

	for {
		select {
		case event := <-s.channel:
			if s.stopped() {
				return
			}
			s.hook.OnEvent(s.ctx, event)
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}
