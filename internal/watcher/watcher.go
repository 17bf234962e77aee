// Package watcher keeps the reference corpus in step with its directories. File creations
// and writes are indexed after a quiet period; removals and renames delete the document.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/pkg/utils"
)

const defaultDebounce = 500 * time.Millisecond

// Handler applies file changes to the corpus. *indexer.Indexer implements it.
type Handler interface {
	IndexFile(ctx context.Context, path string) (bool, error)
	DeleteFile(ctx context.Context, path string) error
	Allowed(path string) bool
}

// Watcher watches corpus directories.
type Watcher struct {
	handler   Handler
	roots     []string
	recursive bool
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = utils.OrNop(l) }
}

// WithDebounce sets how long a file must stay quiet before it is indexed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a Watcher for roots. Subdirectories are watched when recursive is set.
func New(handler Handler, roots []string, recursive bool, opts ...Option) *Watcher {
	w := &Watcher{
		handler:   handler,
		recursive: recursive,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
		pending:   make(map[string]*time.Timer),
	}
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			w.roots = append(w.roots, filepath.Clean(abs))
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Missing roots are created. Events are handled until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return errors.New("watcher already started")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(w.ctx, fsw)
	w.logger.Info("Watching corpus directories", zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	return nil
}

// addTree watches dir and, when recursive, every non-hidden directory beneath it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if hidden(path) || !w.underRoot(path) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.handler.Allowed(path) {
			if err := w.handler.DeleteFile(ctx, path); err != nil {
				w.logger.Warn("Failed to delete document for removed file", zap.String("path", path), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) && w.recursive {
				w.addDirectory(ctx, fsw, path)
			}
			return
		}
		if info.Mode().IsRegular() && w.handler.Allowed(path) {
			w.schedule(ctx, path)
		}
	}
}

// addDirectory starts watching a directory created under a root and indexes the files
// that were moved or copied into it.
func (w *Watcher) addDirectory(ctx context.Context, fsw *fsnotify.Watcher, dir string) {
	if err := w.addTree(fsw, dir); err != nil {
		w.logger.Warn("Failed to watch new directory", zap.String("path", dir), zap.Error(err))
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != dir && hidden(path) {
			return filepath.SkipDir
		}
		if d.Type().IsRegular() && !hidden(path) && w.handler.Allowed(path) {
			w.schedule(ctx, path)
		}
		return nil
	})
}

// schedule indexes path once no further events arrive for it within the debounce window.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		indexed, err := w.handler.IndexFile(ctx, path)
		switch {
		case err != nil:
			w.logger.Warn("Failed to index changed file", zap.String("path", path), zap.Error(err))
		case indexed:
			w.logger.Info("Indexed changed file", zap.String("path", path))
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Roots returns the watched root directories.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops watching and drops pending index work. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fsw := w.fsw
	w.fsw = nil
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	cancel := w.cancel
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}
	cancel()
	err := fsw.Close()
	w.wg.Wait()
	return err
}
