// Package app wires the storefront together. App owns the event bus and the
// state containers, translates view intents into state operations and runs
// the optional modules.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/catalog"
	"github.com/GoCodeAlone/storefront/eventbus"
	"github.com/GoCodeAlone/storefront/order"
)

// App is the storefront mediator. It implements storefront.Application.
type App struct {
	config *storefront.Config
	logger storefront.Logger
	bus    eventbus.EventBus

	store  *catalog.Store
	orders *order.Machine

	moduleRegistry map[string]storefront.Module
	moduleOrder    []string
	subscriptions  []eventbus.Subscription

	initialized bool
	started     bool
	cancel      context.CancelFunc
}

// Option configures an App.
type Option func(*App)

// WithBus replaces the default in-memory bus.
func WithBus(bus eventbus.EventBus) Option {
	return func(a *App) {
		if bus != nil {
			a.bus = bus
		}
	}
}

// New creates the application and its state containers. Orders are sent
// through submitter.
func New(cfg *storefront.Config, logger storefront.Logger, submitter order.Submitter, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, storefront.ErrConfigNil
	}
	if logger == nil {
		logger = storefront.NopLogger{}
	}

	a := &App{
		config:         cfg,
		logger:         logger,
		moduleRegistry: make(map[string]storefront.Module),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.bus == nil {
		var busOpts []eventbus.Option
		if sl, ok := logger.(*slog.Logger); ok {
			busOpts = append(busOpts, eventbus.WithLogger(sl))
		}
		a.bus = eventbus.NewMemoryEventBus(busOpts...)
	}

	store, err := catalog.NewStore(a.bus, logger, catalog.WithImageBase(cfg.API.CDNURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog store: %w", err)
	}
	machine, err := order.NewMachine(a.bus, logger, submitter, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create order machine: %w", err)
	}
	a.store = store
	a.orders = machine
	return a, nil
}

// Bus returns the shared event bus.
func (a *App) Bus() eventbus.EventBus { return a.bus }

// Logger returns the application logger.
func (a *App) Logger() storefront.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() *storefront.Config { return a.config }

// Store returns the catalog store. Outside event handlers it must only be
// touched from within Bus().Exclusive.
func (a *App) Store() *catalog.Store { return a.store }

// Orders returns the checkout machine, with the same caveat as Store.
func (a *App) Orders() *order.Machine { return a.orders }

// RegisterModule adds a module. Modules are initialized and started in
// registration order and stopped in reverse.
func (a *App) RegisterModule(module storefront.Module) error {
	name := module.Name()
	if _, exists := a.moduleRegistry[name]; exists {
		return fmt.Errorf("%w: %s", storefront.ErrModuleAlreadyRegistered, name)
	}
	a.moduleRegistry[name] = module
	a.moduleOrder = append(a.moduleOrder, name)
	return nil
}

// Init subscribes the state containers to their intents, then initializes
// the modules.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if err := a.bind(); err != nil {
		return err
	}
	for _, name := range a.moduleOrder {
		if err := a.moduleRegistry[name].Init(a); err != nil {
			return fmt.Errorf("%w: %s: %w", storefront.ErrModuleInitFailed, name, err)
		}
		a.logger.Info("Initialized module", "module", name)
	}
	a.initialized = true
	return nil
}

// Start starts every Startable module.
func (a *App) Start(ctx context.Context) error {
	if !a.initialized {
		return storefront.ErrApplicationNotInitialized
	}
	if a.started {
		return storefront.ErrApplicationAlreadyStarted
	}
	ctx, a.cancel = context.WithCancel(ctx)

	for _, name := range a.moduleOrder {
		startable, ok := a.moduleRegistry[name].(storefront.Startable)
		if !ok {
			a.logger.Debug("Module does not implement Startable, skipping", "module", name)
			continue
		}
		a.logger.Info("Starting module", "module", name)
		if err := startable.Start(ctx); err != nil {
			return fmt.Errorf("failed to start module %s: %w", name, err)
		}
	}
	a.started = true
	return nil
}

// Stop waits for submissions in flight, stops every Stoppable module in
// reverse order and unsubscribes the state containers.
func (a *App) Stop(ctx context.Context) error {
	var lastErr error
	if err := a.orders.Wait(ctx); err != nil {
		a.logger.Warn("Order submissions still in flight", "error", err)
		lastErr = err
	}

	modules := slices.Clone(a.moduleOrder)
	slices.Reverse(modules)

	for _, name := range modules {
		stoppable, ok := a.moduleRegistry[name].(storefront.Stoppable)
		if !ok {
			continue
		}
		a.logger.Info("Stopping module", "module", name)
		if err := stoppable.Stop(ctx); err != nil {
			a.logger.Error("Error stopping module", "module", name, "error", err)
			lastErr = err
		}
	}

	for _, sub := range a.subscriptions {
		if err := a.bus.Unsubscribe(sub); err != nil {
			a.logger.Warn("Failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	a.subscriptions = nil
	a.initialized = false
	a.started = false

	if a.cancel != nil {
		a.cancel()
	}
	return lastErr
}

// Run initializes and starts the application, blocks until ctx is done and
// then stops it within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("Shutting down", "reason", context.Cause(ctx))

	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return a.Stop(stopCtx)
}
