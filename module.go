package storefront

import (
	"context"

	"github.com/GoCodeAlone/storefront/eventbus"
)

// Application is what modules see of the running storefront: the shared
// event bus, the logger and the loaded configuration. Modules never get a
// reference to the state containers or to each other; everything they need
// flows over the bus.
type Application interface {
	Bus() eventbus.EventBus
	Logger() Logger
	Config() *Config
}

// Module represents an optional storefront component such as the outbound
// relay, the catalog refresher or the HTTP surface.
type Module interface {
	// Name returns the unique identifier for this module.
	Name() string

	// Init wires the module onto the application. It is called once,
	// after the core state containers have subscribed to the bus.
	Init(app Application) error
}

// Startable is an optional interface for modules that run background work.
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable is an optional interface for modules that hold resources.
// Stop is called in reverse registration order.
type Stoppable interface {
	Stop(ctx context.Context) error
}
