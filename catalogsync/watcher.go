package catalogsync

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/storefront"
)

// Watcher is a storefront module that calls onChange whenever the watched
// file is written or replaced. The parent directory is watched so that
// editors that save by renaming a temp file are noticed too.
type Watcher struct {
	name     string
	path     string
	onChange func(ctx context.Context) error

	logger  storefront.Logger
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for path.
func NewWatcher(name, path string, onChange func(ctx context.Context) error) *Watcher {
	return &Watcher{
		name:     name,
		path:     filepath.Clean(path),
		onChange: onChange,
	}
}

// Name returns the module name.
func (w *Watcher) Name() string {
	return w.name
}

// Init captures the logger.
func (w *Watcher) Init(app storefront.Application) error {
	w.logger = app.Logger()
	return nil
}

// Start begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	if w.logger == nil {
		return ErrNotInitialized
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Watching catalog file", "module", w.name, "path", w.path)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("Catalog file changed", "module", w.name, "op", event.Op.String())
			if err := w.onChange(ctx); err != nil {
				w.logger.Error("Catalog reload failed", "module", w.name, "path", w.path, "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "module", w.name, "error", err)
		}
	}
}

// Stop ends watching and waits for an in-progress reload.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.watcher == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("catalog watcher %s: shutdown timed out: %w", w.name, ctx.Err())
	}
	w.watcher = nil
	return err
}
