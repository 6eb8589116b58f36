// Package eventbus provides the synchronous publish/subscribe channel that
// mediates every interaction between state containers and view surfaces.
package eventbus

import (
	"context"
	"errors"
	"time"
)

// EventBus errors
var (
	ErrEventHandlerNil         = errors.New("event handler cannot be nil")
	ErrInvalidSubscriptionType = errors.New("invalid subscription type")
	ErrTopicEmpty              = errors.New("event topic cannot be empty")
	ErrRecursivePublish        = errors.New("topic published while its own handlers are running")
	ErrUnexpectedPayload       = errors.New("unexpected event payload type")
)

// Event represents a message in the event bus.
type Event struct {
	// ID uniquely identifies a single publication.
	ID string `json:"id"`

	// Topic is the channel the event was published on. Topic names are
	// hierarchical, e.g. "basket.changed" or "order.shipping.ready".
	Topic string `json:"topic"`

	// Payload is the data associated with the event. Publishers and
	// subscribers agree on its concrete type per topic.
	Payload any `json:"payload"`

	// CreatedAt is set when the event is published.
	CreatedAt time.Time `json:"createdAt"`
}

// EventHandler is a function that handles an event.
//
// Handlers run synchronously on the publisher's call stack. A handler may
// publish further events using the context it was given, but never on the
// topic it is currently handling.
type EventHandler func(ctx context.Context, event Event) error

// Subscription represents a registered handler.
type Subscription interface {
	// Topic returns the topic or wildcard pattern subscribed to.
	Topic() string

	// ID returns the unique identifier for this subscription.
	ID() string

	// Cancel stops delivery to the handler. It is idempotent.
	Cancel() error
}

// EventBus defines the publish/subscribe contract.
//
// Delivery is synchronous and follows registration order for all handlers
// matching a topic. No ordering is promised between different topics.
type EventBus interface {
	// Publish invokes every handler whose registration matches topic. A
	// failing handler does not prevent the remaining handlers from running;
	// all failures are joined into the returned error.
	Publish(ctx context.Context, topic string, payload any) error

	// Subscribe registers handler for an exact topic or a wildcard pattern
	// ("*" or "prefix.*"). Registering the same handler twice results in
	// two deliveries per event.
	Subscribe(topic string, handler EventHandler) (Subscription, error)

	// Unsubscribe removes a subscription. Unknown or already cancelled
	// subscriptions are ignored.
	Unsubscribe(subscription Subscription) error

	// Exclusive runs fn while no publication is in flight. Events published
	// from fn using the provided context are delivered normally. It returns
	// ctx's error without running fn if ctx ends while waiting.
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error

	// Topics returns all topics or patterns with at least one subscriber.
	Topics() []string

	// SubscriberCount returns the number of subscriptions registered under
	// exactly the given topic or pattern.
	SubscriberCount(topic string) int
}
