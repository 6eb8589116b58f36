package relay

import (
	"context"
	"errors"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// ErrSinkURLRequired is returned when an HTTP sink has no target.
var ErrSinkURLRequired = errors.New("sink URL is required")

// HTTPSink posts events to a CloudEvents HTTP receiver in binary mode.
type HTTPSink struct {
	id     string
	target string
	client cloudevents.Client
}

// NewHTTPSink creates a sink delivering to target.
func NewHTTPSink(id, target string) (*HTTPSink, error) {
	if target == "" {
		return nil, ErrSinkURLRequired
	}
	client, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(target))
	if err != nil {
		return nil, fmt.Errorf("failed to create CloudEvents client for %s: %w", target, err)
	}
	return &HTTPSink{id: id, target: target, client: client}, nil
}

// ObserverID returns the sink identifier.
func (s *HTTPSink) ObserverID() string {
	return s.id
}

// OnEvent delivers event and reports anything but an acknowledgement.
func (s *HTTPSink) OnEvent(ctx context.Context, event cloudevents.Event) error {
	result := s.client.Send(ctx, event)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("failed to deliver %s to %s: %w", event.ID(), s.target, result)
	}
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("sink %s rejected %s: %w", s.target, event.ID(), result)
	}
	return nil
}
