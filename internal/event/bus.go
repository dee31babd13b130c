package event

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/sketchpad/internal/event/topic"
)

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithPanicHandler sets the callback invoked when a handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(b *Bus) {
		b.panicHandler = h
	}
}

// Bus delivers events synchronously to subscribers whose pattern matches
// the event topic. Handlers run in the publisher's goroutine, lowest
// priority value first, then in subscription order. The bus holds no lock
// while handlers run, so a handler may publish or subscribe.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	seq    uint64
	closed bool

	panicHandler PanicHandler

	eventsPublished atomic.Uint64
	eventsDelivered atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs: make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events whose topic matches pattern.
func (b *Bus) Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.Valid() {
		return nil, ErrInvalidTopic
	}

	cfg := subscriptionConfig{priority: PriorityNormal}
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	b.seq++
	sub := &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
		config:  cfg,
		seq:     b.seq,
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *Bus) SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	return b.Subscribe(pattern, fn, opts...)
}

// Unsubscribe cancels and removes a subscription.
func (b *Bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.ID()]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(b.subs, sub.ID())
	return nil
}

// Publish delivers event to every matching subscriber and returns the
// joined handler errors, if any. Events must implement TopicProvider.
func (b *Bus) Publish(ctx context.Context, event any) error {
	tp, ok := event.(TopicProvider)
	if !ok || !tp.EventTopic().Valid() {
		return ErrInvalidEvent
	}
	eventTopic := tp.EventTopic()

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if eventTopic.Matches(sub.pattern) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	b.eventsPublished.Add(1)

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].config.priority != matched[j].config.priority {
			return matched[i].config.priority < matched[j].config.priority
		}
		return matched[i].seq < matched[j].seq
	})

	var errs []error
	for _, sub := range matched {
		if !sub.shouldDeliver(event) {
			continue
		}

		if err := b.dispatch(ctx, sub, event); err != nil {
			b.handlerErrors.Add(1)
			errs = append(errs, &HandlerError{
				SubscriptionID: sub.id,
				Topic:          eventTopic.String(),
				Err:            err,
			})
			continue
		}

		b.eventsDelivered.Add(1)
		if sub.config.once {
			_ = b.Unsubscribe(sub)
		}
	}

	return errors.Join(errs...)
}

// dispatch runs a single handler with panic recovery.
func (b *Bus) dispatch(ctx context.Context, sub *subscription, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			if b.panicHandler != nil {
				b.panicHandler(event, r)
			}
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return sub.handler.Handle(ctx, event)
}

// Close cancels every subscription. Publishing on a closed bus fails.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		sub.Cancel()
		delete(b.subs, id)
	}
	b.closed = true
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	active := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsDelivered:   b.eventsDelivered.Load(),
		HandlerErrors:     b.handlerErrors.Load(),
		HandlerPanics:     b.handlerPanics.Load(),
		ActiveSubscribers: active,
	}
}
