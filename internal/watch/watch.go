// Package watch turns external edits of the configuration tree into
// snapshots. The agent snapshots its own writes at the call site; this
// watcher covers everything else: SSH sessions, editor add-ons, Samba.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault"
)

const defaultDebounce = 2 * time.Second

// Snapshotter is the versioning operation the watcher drives.
type Snapshotter interface {
	Snapshot(label string, opts vault.SnapshotOptions) (string, error)
}

// Matcher filters paths the watcher should not react to.
type Matcher interface {
	Match(path string) bool
}

// Watcher observes a config tree recursively and snapshots after a quiet
// period once something changed.
type Watcher struct {
	root     string
	store    Snapshotter
	rules    Matcher
	log      *zap.Logger
	debounce time.Duration
}

// New constructs a watcher. rules may be nil.
func New(root string, store Snapshotter, rules Matcher, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		root:     filepath.Clean(root),
		store:    store,
		rules:    rules,
		log:      log,
		debounce: defaultDebounce,
	}
}

// Run watches until the context is cancelled. Directory creations extend the
// watch set on the fly.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(fw, ev.Name)
				}
			}
			w.log.Debug("external change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			timer = nil
			id, err := w.store.Snapshot("External edit detected", vault.SnapshotOptions{SkipIfSuspended: true})
			switch {
			case err != nil:
				w.log.Error("snapshot after external edit failed", zap.Error(err))
			case id != "":
				w.log.Info("external edits captured", zap.String("revision", id[:8]))
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// relevant drops events for the store's own directory and ignored paths.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == config.VaultDir || strings.HasPrefix(rel, config.VaultDir+"/") {
		return false
	}
	if w.rules != nil && w.rules.Match(rel) {
		return false
	}
	return true
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // a vanished subtree is not fatal
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == config.VaultDir && path != dir {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.log.Warn("cannot watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}
