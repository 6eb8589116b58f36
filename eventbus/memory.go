package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MemoryEventBus implements EventBus with in-process synchronous delivery.
//
// Top-level publications are serialized: only one call stack dispatches at
// a time, which gives the state containers a single logical thread of
// control even when publishers live on different goroutines. Publications
// nested inside a handler reuse the running dispatch.
type MemoryEventBus struct {
	subscriptions []*memorySubscription // registration order
	topicMutex    sync.RWMutex
	dispatchSem   chan struct{} // capacity 1; held by the running dispatch
	logger        *slog.Logger

	deliveredCount atomic.Uint64
	failedCount    atomic.Uint64
}

// Option configures a MemoryEventBus.
type Option func(*MemoryEventBus)

// WithLogger sets the logger used to report failing handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(m *MemoryEventBus) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// memorySubscription represents a subscription in the memory event bus
type memorySubscription struct {
	id        string
	topic     string
	handler   EventHandler
	cancelled atomic.Bool
	bus       *MemoryEventBus
}

// Topic returns the topic of the subscription
func (s *memorySubscription) Topic() string {
	return s.topic
}

// ID returns the unique identifier for the subscription
func (s *memorySubscription) ID() string {
	return s.id
}

// Cancel cancels the subscription
func (s *memorySubscription) Cancel() error {
	if !s.cancelled.CompareAndSwap(false, true) {
		return nil
	}
	s.bus.remove(s)
	return nil
}

// NewMemoryEventBus creates a new in-memory event bus
func NewMemoryEventBus(opts ...Option) *MemoryEventBus {
	m := &MemoryEventBus{
		logger:      slog.Default(),
		dispatchSem: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish sends an event to every matching subscriber in registration order.
func (m *MemoryEventBus) Publish(ctx context.Context, topic string, payload any) error {
	if topic == "" {
		return ErrTopicEmpty
	}

	state, nested := dispatchFrom(ctx)
	if !nested {
		if err := m.acquire(ctx); err != nil {
			return err
		}
		defer m.release()
		state = &dispatchState{inFlight: make(map[string]struct{})}
		ctx = withDispatch(ctx, state)
	}

	if _, busy := state.inFlight[topic]; busy {
		m.logger.Error("Recursive publish rejected", "topic", topic)
		return fmt.Errorf("%w: %s", ErrRecursivePublish, topic)
	}
	state.inFlight[topic] = struct{}{}
	defer delete(state.inFlight, topic)

	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	var errs []error
	for _, sub := range m.matching(topic) {
		// An earlier handler may have cancelled this one.
		if sub.cancelled.Load() {
			continue
		}
		if err := m.deliver(ctx, sub, event); err != nil {
			m.failedCount.Add(1)
			m.logger.Error("Event handler failed", "topic", topic, "subscription", sub.id, "error", err)
			errs = append(errs, err)
			continue
		}
		m.deliveredCount.Add(1)
	}

	return errors.Join(errs...)
}

// deliver runs a single handler, converting a panic into an error.
func (m *MemoryEventBus) deliver(ctx context.Context, sub *memorySubscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %q panicked: %v", sub.topic, r)
		}
	}()
	return sub.handler(ctx, event)
}

// matching snapshots the subscriptions matching topic. Subscriptions added
// while a publication runs become visible on the next publication.
func (m *MemoryEventBus) matching(topic string) []*memorySubscription {
	m.topicMutex.RLock()
	defer m.topicMutex.RUnlock()

	var subs []*memorySubscription
	for _, sub := range m.subscriptions {
		if MatchesTopic(topic, sub.topic) {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Subscribe registers a handler for a topic or pattern
func (m *MemoryEventBus) Subscribe(topic string, handler EventHandler) (Subscription, error) {
	if topic == "" {
		return nil, ErrTopicEmpty
	}
	if handler == nil {
		return nil, ErrEventHandlerNil
	}

	sub := &memorySubscription{
		id:      uuid.NewString(),
		topic:   topic,
		handler: handler,
		bus:     m,
	}

	m.topicMutex.Lock()
	m.subscriptions = append(m.subscriptions, sub)
	m.topicMutex.Unlock()

	m.logger.Debug("Subscription created", "topic", topic, "subscription", sub.id)
	return sub, nil
}

// Unsubscribe removes a subscription
func (m *MemoryEventBus) Unsubscribe(subscription Subscription) error {
	if subscription == nil {
		return nil
	}
	sub, ok := subscription.(*memorySubscription)
	if !ok {
		return ErrInvalidSubscriptionType
	}
	if sub.bus != m {
		return nil
	}
	return sub.Cancel()
}

func (m *MemoryEventBus) remove(sub *memorySubscription) {
	m.topicMutex.Lock()
	defer m.topicMutex.Unlock()

	m.subscriptions = slices.DeleteFunc(m.subscriptions, func(s *memorySubscription) bool {
		return s == sub
	})
	m.logger.Debug("Subscription removed", "topic", sub.topic, "subscription", sub.id)
}

// Exclusive runs fn with the dispatch lock held. Waiting for the lock ends
// early with ctx's error when ctx is done first.
func (m *MemoryEventBus) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := dispatchFrom(ctx); nested {
		return fn(ctx)
	}

	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()
	return fn(withDispatch(ctx, &dispatchState{inFlight: make(map[string]struct{})}))
}

// acquire takes the dispatch lock or gives up when ctx is done.
func (m *MemoryEventBus) acquire(ctx context.Context) error {
	select {
	case m.dispatchSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for dispatch: %w", ctx.Err())
	}
}

func (m *MemoryEventBus) release() {
	<-m.dispatchSem
}

// Topics returns a list of all active topics
func (m *MemoryEventBus) Topics() []string {
	m.topicMutex.RLock()
	defer m.topicMutex.RUnlock()

	topics := make([]string, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if !slices.Contains(topics, sub.topic) {
			topics = append(topics, sub.topic)
		}
	}
	return topics
}

// SubscriberCount returns the number of subscribers for a topic
func (m *MemoryEventBus) SubscriberCount(topic string) int {
	m.topicMutex.RLock()
	defer m.topicMutex.RUnlock()

	count := 0
	for _, sub := range m.subscriptions {
		if sub.topic == topic {
			count++
		}
	}
	return count
}

// Stats returns basic delivery stats for monitoring/testing.
func (m *MemoryEventBus) Stats() (delivered uint64, failed uint64) {
	return m.deliveredCount.Load(), m.failedCount.Load()
}
