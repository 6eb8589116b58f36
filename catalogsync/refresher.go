package catalogsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/catalog"
	"github.com/GoCodeAlone/storefront/eventbus"
)

// Refresher is a storefront module that loads the catalog when started and
// then again on every tick of its cron schedule. An empty schedule loads
// once.
type Refresher struct {
	name     string
	source   Source
	schedule string

	bus    eventbus.EventBus
	logger storefront.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lastSync time.Time
	lastErr  error
}

// NewRefresher creates a refresher for source. schedule is a standard
// five-field cron spec or a descriptor such as "@every 15m".
func NewRefresher(name string, source Source, schedule string) *Refresher {
	return &Refresher{
		name:     name,
		source:   source,
		schedule: schedule,
	}
}

// Name returns the module name.
func (r *Refresher) Name() string {
	return r.name
}

// Init validates the schedule and captures the bus.
func (r *Refresher) Init(app storefront.Application) error {
	if r.source == nil {
		return ErrNilSource
	}
	if r.schedule != "" {
		if _, err := cron.ParseStandard(r.schedule); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, r.schedule, err)
		}
	}
	r.bus = app.Bus()
	r.logger = app.Logger()
	return nil
}

// Start loads the catalog once and schedules further refreshes. A failing
// first load is logged, not fatal: the next tick tries again.
func (r *Refresher) Start(ctx context.Context) error {
	if r.bus == nil {
		return ErrNotInitialized
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.Refresh(r.ctx); err != nil {
		r.logger.Warn("Initial catalog load failed", "module", r.name, "error", err)
	}
	if r.schedule == "" {
		return nil
	}

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, r.tick); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, r.schedule, err)
	}
	r.cron.Start()
	r.logger.Info("Catalog refresh scheduled", "module", r.name, "schedule", r.schedule)
	return nil
}

func (r *Refresher) tick() {
	if err := r.Refresh(r.ctx); err != nil {
		r.logger.Error("Scheduled catalog refresh failed", "module", r.name, "error", err)
	}
}

// Stop cancels scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.cron == nil {
		return nil
	}

	cronCtx := r.cron.Stop()
	select {
	case <-cronCtx.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("catalog refresher %s: shutdown timed out: %w", r.name, ctx.Err())
	}
}

// Refresh fetches the products and publishes them on catalog.TopicCatalogLoad.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.bus == nil {
		return ErrNotInitialized
	}

	items, err := r.source.Products(ctx)
	if err == nil {
		err = r.bus.Publish(ctx, catalog.TopicCatalogLoad, items)
	}

	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.lastSync = time.Now()
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}
	r.logger.Debug("Catalog refreshed", "module", r.name, "products", len(items))
	return nil
}

// Status returns the time of the last successful refresh and the error of
// the last attempt.
func (r *Refresher) Status() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSync, r.lastErr
}
