// Package watch reports debounced source file changes under a directory.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/rootpath/internal/lang"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// Config contains watcher configuration.
type Config struct {
	Dir      string
	Debounce time.Duration
	// Skip drops matching files before they are queued. Optional.
	Skip func(path string) bool
	// OnChange receives files that were written or created and files that
	// were removed or renamed away, once each has been quiet for Debounce.
	OnChange func(ctx context.Context, changed, removed []string)
	Logger   *slog.Logger
}

type pending struct {
	at      time.Time
	removed bool
}

// Watcher watches a directory tree for source file changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	skip     func(string) bool
	onChange func(context.Context, []string, []string)
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]pending
}

// New creates a Watcher and registers every directory under cfg.Dir, so
// changes made after New returns are observed.
func New(cfg Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:      cfg.Dir,
		debounce: cfg.Debounce,
		skip:     cfg.Skip,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
		watcher:  fw,
		pending:  make(map[string]pending),
	}
	if w.debounce == 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if err := w.addWatchDirs(w.dir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Watch processes events until ctx is cancelled. It blocks.
func (w *Watcher) Watch(ctx context.Context) error {
	w.logger.Info("watching for file changes", "dir", w.dir)
	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func skipDir(path, root string, name string) bool {
	return path != root && (strings.HasPrefix(name, ".") || skipDirs[name])
}

func (w *Watcher) addWatchDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipDir(path, w.dir, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !skipDir(path, w.dir, info.Name()) {
				if err := w.addWatchDirs(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	var removed bool
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		removed = true
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
	default:
		return
	}

	if _, ok := lang.ForFile(path); !ok {
		return
	}
	if w.skip != nil && w.skip(path) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = pending{at: time.Now(), removed: removed}
	w.pendingMu.Unlock()

	w.logger.Debug("file changed", "path", path, "op", event.Op.String())
}

func (w *Watcher) processDebounced(ctx context.Context) {
	tick := max(w.debounce/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush hands files that have been quiet for the debounce period to
// OnChange.
func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	now := time.Now()
	var changed, removed []string
	for path, p := range w.pending {
		if now.Sub(p.at) < w.debounce {
			continue
		}
		if p.removed {
			removed = append(removed, path)
		} else {
			changed = append(changed, path)
		}
		delete(w.pending, path)
	}
	w.pendingMu.Unlock()

	if len(changed) == 0 && len(removed) == 0 {
		return
	}
	sort.Strings(changed)
	sort.Strings(removed)
	if w.onChange != nil {
		w.onChange(ctx, changed, removed)
	}
}
