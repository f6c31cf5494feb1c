// Package watch re-indexes a local documentation directory whenever its
// Markdown files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/docsift/docsift/internal/crawl"
	"github.com/docsift/docsift/internal/index"
)

// DefaultDebounceWindow is how long a burst of writes is allowed to settle
// before one re-index runs.
const DefaultDebounceWindow = 500 * time.Millisecond

// Watcher keeps the index synchronized with a directory on disk. Change
// events are debounced, then the whole directory is re-crawled and replaces
// the repository's previous entries.
type Watcher struct {
	dir     string
	manager *index.Manager
	crawler *crawl.LocalCrawler
	window  time.Duration
	logger  *slog.Logger

	// reindexed is signalled after each completed re-index, for tests.
	reindexed chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceWindow overrides the debounce window.
func WithDebounceWindow(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.window = d
		}
	}
}

// New creates a Watcher over dir.
func New(dir string, manager *index.Manager, opts ...Option) (*Watcher, error) {
	if manager == nil {
		return nil, errors.New("watch: index manager is required")
	}
	w := &Watcher{
		dir:       dir,
		manager:   manager,
		crawler:   crawl.NewLocalCrawler(),
		window:    DefaultDebounceWindow,
		reindexed: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = slog.Default().With("component", "watch", "dir", dir)
	return w, nil
}

// Run indexes the directory once, then blocks watching for changes until the
// context is cancelled. Re-index failures are logged, not fatal: a transient
// embedding outage must not kill the watch loop.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	// Watches are registered before the initial index so changes made while
	// it runs are not lost.
	if err := w.addRecursive(fsw, w.dir); err != nil {
		return err
	}

	if err := w.reindex(ctx); err != nil {
		return fmt.Errorf("initial index: %w", err)
	}

	debouncer := NewDebouncer(w.window)
	defer debouncer.Stop()

	w.logger.Info("watching for changes", "debounce", w.window)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			w.handleEvent(fsw, debouncer, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			w.logger.Warn("watch error", "error", err)

		case batch := <-debouncer.Output():
			w.logger.Info("changes detected", "paths", len(batch))
			if err := w.reindex(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("re-index failed", "error", err)
			}
		}
	}
}

// handleEvent routes one fsnotify event. New directories are added to the
// watch set; Markdown file changes feed the debouncer.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, debouncer *Debouncer, event fsnotify.Event) {
	base := filepath.Base(event.Name)

	if event.Op.Has(fsnotify.Create) && !strings.HasPrefix(base, ".") {
		// fsnotify watches are not recursive; pick up new subtrees.
		if err := w.addRecursive(fsw, event.Name); err == nil {
			w.logger.Debug("watching new path", "path", event.Name)
		}
	}

	if !crawl.IsMarkdownPath(event.Name) {
		return
	}
	if event.Op.Has(fsnotify.Chmod) && event.Op&^fsnotify.Chmod == 0 {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "path", event.Name)
	debouncer.Add(event.Name)
}

// addRecursive watches path and every non-hidden directory below it.
// A path that is not a directory is ignored.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may already be gone; skip it.
			return nil //nolint:nilerr
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && p != path {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// reindex replaces the directory's repository entries with a fresh crawl.
func (w *Watcher) reindex(ctx context.Context) error {
	docs, err := w.crawler.Crawl(w.dir)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	repo := filepath.Base(w.dir)
	if abs, err := filepath.Abs(w.dir); err == nil {
		repo = filepath.Base(abs)
	}
	if err := w.manager.ClearRepo(ctx, repo); err != nil {
		return fmt.Errorf("clear %s: %w", repo, err)
	}

	chunks, err := w.manager.Index(ctx, docs)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	w.logger.Info("re-indexed", "repo", repo, "files", len(docs), "chunks", chunks)

	select {
	case w.reindexed <- struct{}{}:
	default:
	}
	return nil
}

// Reindexed is signalled after each completed re-index.
func (w *Watcher) Reindexed() <-chan struct{} {
	return w.reindexed
}
