// Package observable provides the base every state container composes: a
// handle on the event bus plus the "mutate, then announce" helpers.
package observable

import (
	"context"
	"errors"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/eventbus"
)

// Model errors
var (
	ErrNilBus                 = errors.New("observable model requires an event bus")
	ErrTargetNotStructPointer = errors.New("assign target must be a non-nil pointer to a struct")
	ErrUnknownField           = errors.New("no field with this name")
	ErrFieldConversion        = errors.New("value cannot be converted to the field type")
)

// Model announces state changes on the event bus. It is embedded by value
// in the catalog store and the order machine.
type Model struct {
	bus    eventbus.EventBus
	logger storefront.Logger
}

// NewModel creates a Model publishing on bus. A nil logger discards output.
func NewModel(bus eventbus.EventBus, logger storefront.Logger) (Model, error) {
	if bus == nil {
		return Model{}, ErrNilBus
	}
	if logger == nil {
		logger = storefront.NopLogger{}
	}
	return Model{bus: bus, logger: logger}, nil
}

// Bus returns the bus the model publishes on.
func (m Model) Bus() eventbus.EventBus {
	return m.bus
}

// Logger returns the model's logger.
func (m Model) Logger() storefront.Logger {
	return m.logger
}

// Notify publishes payload on topic.
func (m Model) Notify(ctx context.Context, topic string, payload any) error {
	return m.bus.Publish(ctx, topic, payload)
}

// EmitChanges announces that the state behind topic changed. Subscribers
// always receive a non-nil payload.
func (m Model) EmitChanges(ctx context.Context, topic string, payload any) error {
	if payload == nil {
		payload = struct{}{}
	}
	m.logger.Debug("State changed", "topic", topic)
	return m.Notify(ctx, topic, payload)
}

// Assign copies data onto target (see the package-level Assign) and, when
// topic is not empty, announces target on it.
func (m Model) Assign(ctx context.Context, target any, data map[string]any, topic string) ([]string, error) {
	assigned, err := Assign(target, data)
	if err != nil {
		return nil, err
	}
	if topic != "" && len(assigned) > 0 {
		if err := m.EmitChanges(ctx, topic, target); err != nil {
			return assigned, err
		}
	}
	return assigned, nil
}
