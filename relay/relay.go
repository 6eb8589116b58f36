package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/eventbus"
)

// Relay errors
var (
	ErrNilObserver     = errors.New("observer cannot be nil")
	ErrDuplicateTopics = errors.New("relay topic listed twice")
)

// DefaultTopics are relayed when no topics are given.
var DefaultTopics = []string{"order.*"}

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool // set of event types this observer is interested in
	registeredAt time.Time
}

// Relay is a storefront module that forwards bus events to observers.
// Delivery to observers is asynchronous; Stop waits for it to drain.
type Relay struct {
	name   string
	source string
	topics []string

	bus           eventbus.EventBus
	logger        storefront.Logger
	subscriptions []eventbus.Subscription

	observers     map[string]*observerRegistration // key is observer ID
	observerOrder []string
	observerMutex sync.RWMutex

	inflight sync.WaitGroup
}

// New creates a relay. source becomes the CloudEvent source attribute;
// topics are bus topics or patterns and default to DefaultTopics.
func New(name, source string, topics ...string) *Relay {
	if len(topics) == 0 {
		topics = DefaultTopics
	}
	return &Relay{
		name:      name,
		source:    source,
		topics:    slices.Clone(topics),
		observers: make(map[string]*observerRegistration),
		logger:    storefront.NopLogger{},
	}
}

// Name returns the module name.
func (r *Relay) Name() string {
	return r.name
}

// Init subscribes the relay to its topics.
func (r *Relay) Init(app storefront.Application) error {
	r.bus = app.Bus()
	r.logger = app.Logger()

	for i, topic := range r.topics {
		if slices.Contains(r.topics[:i], topic) {
			return fmt.Errorf("%w: %s", ErrDuplicateTopics, topic)
		}
		sub, err := r.bus.Subscribe(topic, r.forward)
		if err != nil {
			return fmt.Errorf("failed to subscribe relay to %s: %w", topic, err)
		}
		r.subscriptions = append(r.subscriptions, sub)
	}
	r.logger.Info("Relay subscribed", "module", r.name, "topics", r.topics)
	return nil
}

func (r *Relay) forward(ctx context.Context, e eventbus.Event) error {
	event, err := FromBusEvent(r.source, e)
	if err != nil {
		return err
	}
	return r.NotifyObservers(eventbus.Detach(ctx), event)
}

// Stop unsubscribes from the bus, waits for pending deliveries and closes
// observers that hold resources.
func (r *Relay) Stop(ctx context.Context) error {
	for _, sub := range r.subscriptions {
		_ = r.bus.Unsubscribe(sub)
	}
	r.subscriptions = nil

	if err := r.Wait(ctx); err != nil {
		return err
	}

	r.observerMutex.RLock()
	defer r.observerMutex.RUnlock()
	var errs []error
	for _, id := range r.observerOrder {
		if closer, ok := r.observers[id].observer.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing observer %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until all pending deliveries finished or ctx is done.
func (r *Relay) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("relay %s: pending deliveries: %w", r.name, ctx.Err())
	}
}

// RegisterObserver adds an observer. With no eventTypes the observer
// receives every relayed event. Registering an ID again replaces it.
func (r *Relay) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrNilObserver
	}
	r.observerMutex.Lock()
	defer r.observerMutex.Unlock()

	eventTypeMap := make(map[string]bool)
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	id := observer.ObserverID()
	if _, exists := r.observers[id]; !exists {
		r.observerOrder = append(r.observerOrder, id)
	}
	r.observers[id] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	r.logger.Info("Observer registered", "observerID", id, "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. Unknown observers are ignored.
func (r *Relay) UnregisterObserver(observer Observer) error {
	r.observerMutex.Lock()
	defer r.observerMutex.Unlock()

	id := observer.ObserverID()
	if _, exists := r.observers[id]; exists {
		delete(r.observers, id)
		r.observerOrder = slices.DeleteFunc(r.observerOrder, func(s string) bool { return s == id })
		r.logger.Info("Observer unregistered", "observerID", id)
	}
	return nil
}

// NotifyObservers validates event and hands it to every interested
// observer on its own goroutine. Observer failures are logged.
func (r *Relay) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		r.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}

	r.observerMutex.RLock()
	defer r.observerMutex.RUnlock()

	for _, id := range r.observerOrder {
		registration := r.observers[id]
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}

		r.inflight.Add(1)
		go func() {
			defer r.inflight.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Observer panicked", "observerID", id, "event", event.Type(), "panic", rec)
				}
			}()

			if err := registration.observer.OnEvent(ctx, event); err != nil {
				r.logger.Error("Observer error", "observerID", id, "event", event.Type(), "error", err)
			}
		}()
	}
	return nil
}

// GetObservers returns information about currently registered observers.
func (r *Relay) GetObservers() []ObserverInfo {
	r.observerMutex.RLock()
	defer r.observerMutex.RUnlock()

	info := make([]ObserverInfo, 0, len(r.observerOrder))
	for _, id := range r.observerOrder {
		registration := r.observers[id]
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		slices.Sort(eventTypes)

		info = append(info, ObserverInfo{
			ID:           id,
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	return info
}
