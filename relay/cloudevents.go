package relay

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/storefront/eventbus"
)

// EventTypePrefix turns a bus topic into a CloudEvent type, e.g.
// "order.submitted" becomes "com.storefront.order.submitted".
const EventTypePrefix = "com.storefront."

// CloudEvent types for the topics relayed by default.
const (
	EventTypeOrderSubmitted = EventTypePrefix + "order.submitted"
	EventTypeOrderFailed    = EventTypePrefix + "order.failed"
)

// Extension attributes carried by relayed events.
const (
	ExtensionBusTopic = "bustopic"
	ExtensionBusEvent = "busevent"
)

// EventType returns the CloudEvent type for a bus topic.
func EventType(topic string) string {
	return EventTypePrefix + topic
}

// NewCloudEvent creates a CloudEvent with a time-ordered id and JSON data.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
			return event, fmt.Errorf("failed to encode event data: %w", err)
		}
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event, nil
}

// FromBusEvent wraps a bus event.
func FromBusEvent(source string, e eventbus.Event) (cloudevents.Event, error) {
	return NewCloudEvent(EventType(e.Topic), source, e.Payload, map[string]any{
		ExtensionBusTopic: e.Topic,
		ExtensionBusEvent: e.ID,
	})
}

// generateEventID generates a unique identifier for CloudEvents using UUIDv7.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
