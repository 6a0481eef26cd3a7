package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mdchat/internal/storage"
	"github.com/starford/mdchat/internal/vpath"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted"; path is logical.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the storage root directory and keeps
// the index in line with edits made outside the process until ctx is
// cancelled. It calls cb (if non-nil) after each index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass over the whole tree.
func Watch(ctx context.Context, db *DB, b storage.Backend, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, p string) {
		if cb != nil {
			cb(kind, p)
		}
	}

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, b, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			p, doc, ok := logicalPath(root, ev.Name)
			if !ok {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", p))
					}
					// Directories may arrive already populated (moves, extracts).
					scheduleReconcile()
					continue
				}
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if !doc && !vpath.IsMarkdown(p) {
					continue
				}
				changed, idxErr := Reindex(ctx, db, b, p)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", p), slog.String("error", idxErr.Error()))
					continue
				}
				if !changed {
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 && !doc {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", p), slog.String("op", kind))
				notify(kind, p)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A removed folder document only clears the folder's content.
				changed, idxErr := Reindex(ctx, db, b, p)
				if idxErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", p), slog.String("error", idxErr.Error()))
				} else if changed {
					kind := "deleted"
					if doc {
						kind = "updated"
					}
					logger.Debug("watcher: removed", slog.String("path", p))
					notify(kind, p)
				}
				// fsnotify fires Rename on the old path only; the new path
				// may arrive as a Create or not at all.
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile runs a full Sync and reports the rows it added, changed or
// removed.
func reconcile(ctx context.Context, db *DB, b storage.Backend, logger *slog.Logger, notify func(kind, p string)) {
	before, err := db.AllChecksums(ctx)
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	if err := Sync(ctx, db, b, logger); err != nil {
		logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	after, err := db.AllChecksums(ctx)
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			notify("deleted", p)
		}
	}
	for p, cs := range after {
		prev, ok := before[p]
		switch {
		case !ok:
			notify("created", p)
		case prev != cs:
			notify("updated", p)
		}
	}
}

// logicalPath maps a physical path below root to its logical node path.
// doc is set when the physical file is a folder document, in which case the
// folder's path is returned. Temp files and paths outside root are rejected.
func logicalPath(root, abs string) (p string, doc bool, ok bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false, false
	}
	name := filepath.Base(abs)
	if strings.HasPrefix(name, storage.TempPrefix) {
		return "", false, false
	}
	if rel == "." {
		return vpath.Root, false, true
	}
	p = vpath.Normalize(filepath.ToSlash(rel))
	if strings.EqualFold(name, storage.FolderDocName) {
		return vpath.Parent(p), true, true
	}
	return p, false, true
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
