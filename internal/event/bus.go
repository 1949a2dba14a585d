package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Bus delivers events synchronously to matching subscriptions.
// It is safe for concurrent use; handlers run in the publisher's goroutine
// and may themselves subscribe, unsubscribe or publish.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool

	source string
	logger *slog.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	failures  atomic.Uint64
	panics    atomic.Uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithSource sets the Source recorded in every published event's metadata.
func WithSource(source string) BusOption {
	return func(b *Bus) {
		b.source = source
	}
}

// WithLogger sets the logger used to report handler failures.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "event")
	return b
}

// Subscribe registers fn for every event published under t.
func (b *Bus) Subscribe(t Topic, fn HandlerFunc) (Subscription, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, t)
	}
	if fn == nil {
		return nil, ErrNilHandler
	}

	sub := &subscription{
		id:      uuid.NewString(),
		topic:   t,
		handler: fn,
		bus:     b,
	}
	sub.state.Store(int32(SubscriptionStateActive))

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	b.subs = append(b.subs, sub)
	return sub, nil
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers payload under topic to every subscription of that topic,
// in registration order, before returning. Handler errors and panics do not stop
// delivery to the remaining subscriptions; they are joined and returned.
func (b *Bus) Publish(ctx context.Context, t Topic, payload any) error {
	if !t.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, t)
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	// Snapshot so handlers can change subscriptions during delivery.
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	b.published.Add(1)

	env := Envelope{
		Topic:   t,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    b.source,
		},
	}

	var errs []error
	for _, sub := range subs {
		if !sub.shouldDeliver(env) {
			continue
		}
		if err := b.deliver(ctx, sub, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("handler panicked", "subscription", sub.id, "topic", env.Topic, "panic", r)
			err = &PanicError{SubscriptionID: sub.id, Topic: env.Topic, Value: r}
		}
	}()

	b.delivered.Add(1)
	if herr := sub.handler(ctx, env); herr != nil {
		b.failures.Add(1)
		b.logger.Warn("handler failed", "subscription", sub.id, "topic", env.Topic, "error", herr)
		return &HandlerError{SubscriptionID: sub.id, Topic: env.Topic, Err: herr}
	}
	return nil
}

// Close cancels every subscription. Further Publish and Subscribe calls
// return ErrBusClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.state.Store(int32(SubscriptionStateCancelled))
	}
}

// Stats contains bus counters.
type Stats struct {
	Published uint64
	Delivered uint64
	Failures  uint64
	Panics    uint64
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Failures:  b.failures.Load(),
		Panics:    b.panics.Load(),
	}
}
