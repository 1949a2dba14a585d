package event

import (
	"context"
	"sync/atomic"
	"time"
)

// Metadata contains standard information attached to every delivered event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was published.
	Timestamp time.Time

	// Source identifies the publisher.
	Source string
}

// Envelope is what a handler receives: the topic, the type-erased payload
// and the metadata. Handlers type-switch on Payload.
type Envelope struct {
	Topic    Topic
	Payload  any
	Metadata Metadata
}

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, env Envelope) error

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStateCancelled means the subscription has been permanently cancelled.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription represents an active event subscription.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Topic returns the subscribed topic.
	Topic() Topic

	// State returns the current subscription state.
	State() SubscriptionState

	// Cancel permanently cancels the subscription and removes it from its bus.
	// Calling Cancel more than once is safe.
	Cancel()
}

type subscription struct {
	id      string
	topic   Topic
	handler HandlerFunc
	state   atomic.Int32
	bus     *Bus
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Topic() Topic {
	return s.topic
}

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscription) Cancel() {
	if SubscriptionState(s.state.Swap(int32(SubscriptionStateCancelled))) == SubscriptionStateCancelled {
		return
	}
	if s.bus != nil {
		s.bus.remove(s.id)
	}
}

func (s *subscription) shouldDeliver(env Envelope) bool {
	return s.State() == SubscriptionStateActive && env.Topic == s.topic
}
