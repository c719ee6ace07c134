package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay batches the bursts of events editors emit on save.
const DefaultReloadDelay = 300 * time.Millisecond

// Watcher reloads an Engine when a .rego file in its directory changes.
// It needs the OS filesystem; engines on other filesystems are not watched.
type Watcher struct {
	engine  *Engine
	dir     string
	logger  *slog.Logger
	delay   time.Duration
	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	reloaded func(error)
}

// NewWatcher watches the engine's policy directory, which must exist.
func NewWatcher(e *Engine, logger *slog.Logger) (*Watcher, error) {
	if e.cfg.Dir == "" {
		return nil, fmt.Errorf("engine has no policy directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(e.cfg.Dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", e.cfg.Dir, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		engine:  e,
		dir:     e.cfg.Dir,
		logger:  logger.With("component", "policy-watch"),
		delay:   DefaultReloadDelay,
		watcher: fw,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins processing events.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()
}

// Stop ends the event loop and drops any pending reload.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.cancel()
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".rego" {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("policy file changed", "file", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	err := w.engine.Reload(w.ctx)
	if err != nil {
		w.logger.Warn("policy reload failed; previous policies stay active", "dir", w.dir, "error", err)
	} else {
		w.logger.Info("policies reloaded", "dir", w.dir, "policies", w.engine.PolicyNames())
	}
	w.mu.Lock()
	cb := w.reloaded
	w.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}
