package library

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/modlib/internal/apperr"
)

// Event kinds passed to an EventCallback.
const (
	EventAdded   = "added"
	EventUpdated = "updated"
	EventRemoved = "removed"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind, filename string)

// settleDelay debounces bursts of writes to one file and rename fallout.
const settleDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the library roots and keeps the index
// in step until ctx is cancelled. It calls cb (if non-nil) after each index
// change.
//
// New directories created at runtime are added to the watch list and
// scanned. Writes are collected per file and reconciled once the file has
// been quiet for a short delay. Removed files drop their record; renames and
// removals of whole directories trigger a reconciliation pass over the roots.
func (l *Library) Watch(ctx context.Context, roots []string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range roots {
		if err := addDirsRecursive(w, root); err != nil {
			return err
		}
		l.logger.Info("watcher: started", slog.String("root", root))
	}

	notify := func(kind, filename string) {
		if cb != nil {
			cb(kind, filename)
		}
	}

	pending := make(map[string]struct{})
	reconcile := false
	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(settleDelay)
			timerCh = timer.C
		} else {
			timer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			l.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for p := range pending {
				l.applyFile(ctx, p, notify)
			}
			clear(pending)
			if reconcile {
				reconcile = false
				l.reconcile(ctx, roots, notify)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, path); addErr != nil {
						l.logger.Warn("watcher: add new dir failed",
							slog.String("path", path),
							slog.String("error", addErr.Error()))
					} else {
						l.logger.Debug("watcher: watching new dir", slog.String("path", path))
					}
					// Files may have landed before the watch was in place.
					if files, listErr := l.fs.List(path); listErr == nil {
						for _, f := range files {
							pending[f.Path] = struct{}{}
						}
						schedule()
					}
					continue
				}
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if !l.fs.Accepts(path) {
					continue
				}
				pending[path] = struct{}{}
				schedule()

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, path)
				// fsnotify reports the old name only; the new one arrives
				// as a Create. Directories show up here too, so a
				// reconciliation pass catches their contents.
				if l.fs.Accepts(path) {
					l.dropFile(ctx, path, notify)
				}
				reconcile = true
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (l *Library) applyFile(ctx context.Context, path string, notify EventCallback) {
	o, err := l.AddOrUpdate(ctx, path)
	if err != nil {
		l.logger.Warn("watcher: index failed",
			slog.String("path", path),
			slog.String("outcome", o.String()),
			slog.String("error", err.Error()))
		return
	}
	key, _ := Key(path)
	switch o {
	case Added:
		notify(EventAdded, key)
	case Updated:
		notify(EventUpdated, key)
	}
	l.logger.Debug("watcher: indexed", slog.String("path", path), slog.String("outcome", o.String()))
}

func (l *Library) dropFile(ctx context.Context, path string, notify EventCallback) {
	key, err := Key(path)
	if err != nil {
		return
	}
	if err := l.db.Delete(ctx, key); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			l.logger.Warn("watcher: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}
	l.logger.Debug("watcher: deleted", slog.String("filename", key))
	notify(EventRemoved, key)
}

// reconcile removes records under roots whose file is gone and indexes
// files under roots that have no record yet.
func (l *Library) reconcile(ctx context.Context, roots []string, notify EventCallback) {
	names, err := l.db.AllFilenames(ctx)
	if err != nil {
		l.logger.Warn("reconcile: list records failed", slog.String("error", err.Error()))
		return
	}
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}

	for _, root := range roots {
		rootKey, err := Key(root)
		if err != nil {
			continue
		}
		prefix := strings.TrimSuffix(rootKey, "/") + "/"
		for _, n := range names {
			if !strings.HasPrefix(n, prefix) {
				continue
			}
			if _, statErr := os.Stat(filepath.FromSlash(n)); errors.Is(statErr, fs.ErrNotExist) {
				if delErr := l.db.Delete(ctx, n); delErr == nil {
					l.logger.Debug("reconcile: removed stale", slog.String("filename", n))
					notify(EventRemoved, n)
				}
			}
		}

		files, err := l.fs.List(root)
		if err != nil {
			l.logger.Warn("reconcile: list failed", slog.String("root", root), slog.String("error", err.Error()))
			continue
		}
		for _, f := range files {
			key, err := Key(f.Path)
			if err != nil {
				continue
			}
			if _, ok := known[key]; ok {
				continue
			}
			l.applyFile(ctx, f.Path, notify)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
