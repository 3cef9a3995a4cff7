package render

import "context"

// Channel is a best-effort broadcast of render updates.
type Channel interface {
	// Publish offers u to the current subscribers. It never waits for slow
	// subscribers.
	Publish(ctx context.Context, u Update) error
	// Subscribe registers hook for updates accepted by every filter, until
	// ctx is done or the subscription is cancelled.
	Subscribe(ctx context.Context, hook Hook, filters ...Filter) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

type discard struct{}

// Discard is a channel without listeners.
func Discard() Channel {
	return discard{}
}

func (discard) Publish(context.Context, Update) error { return nil }

func (discard) Subscribe(context.Context, Hook, ...Filter) (Subscription, error) {
	return discardSubscription{}, nil
}

type discardSubscription struct{}

func (discardSubscription) ID() string   { return "" }
func (discardSubscription) Unsubscribe() {}
