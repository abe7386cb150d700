// Package watch follows a working folder with fsnotify and folds the events
// into a loaded checksum database without hashing.
package watch

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/fs"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// Target receives the changes. *vt.Session implements it.
type Target interface {
	ApplyChange(c vt.Change) (vt.Status, bool, error)
	Items(scope string, c vt.Class) ([]vt.FileRecord, error)
}

// Event is reported for every change that altered a record.
type Event struct {
	Change vt.Change
	Status vt.Status
}

// Options configure a Watcher.
type Options struct {
	// Debounce suppresses repeated events of the same kind on one path.
	Debounce time.Duration
	// Ignore holds .verignore patterns; nil ignores nothing.
	Ignore *fs.IgnoreMatcher
	// OnEvent is called after each applied change.
	OnEvent func(Event)
	Logger  vt.Logger
	Clock   vt.Clock
}

type seen struct {
	kind vt.ChangeKind
	at   time.Time
}

// Watcher maps fsnotify events under root to vt.Change values.
type Watcher struct {
	fs     afero.Fs
	root   string
	target Target
	opts   Options
	logger vt.Logger
	clock  vt.Clock

	fsw *fsnotify.Watcher
	add func(string) error

	mu   sync.Mutex
	last map[string]seen
}

// New creates a Watcher over the working folder root.
func New(afs afero.Fs, root string, target Target, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := newWatcher(afs, root, target, opts)
	w.fsw = fsw
	w.add = fsw.Add
	return w, nil
}

func newWatcher(afs afero.Fs, root string, target Target, opts Options) *Watcher {
	w := &Watcher{
		fs:     afs,
		root:   filepath.Clean(root),
		target: target,
		opts:   opts,
		logger: opts.Logger,
		clock:  opts.Clock,
		last:   make(map[string]seen),
	}
	if w.logger == nil {
		w.logger = vt.NewNopLogger()
	}
	if w.clock == nil {
		w.clock = vt.RealClock{}
	}
	return w
}

// Run watches until ctx is done. Folders created while running are added.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addTree(w.root, false); err != nil {
		return err
	}
	w.logger.Info("watching", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch events were dropped; run an update to resync", "error", err)
				continue
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// addTree registers dir and its subfolders. With announce set, regular files
// found below are reported as created, since their events predate the watch.
func (w *Watcher) addTree(dir string, announce bool) error {
	return afero.Walk(w.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.logger.Warn("skipping unreadable folder", "path", p, "error", err)
			return nil
		}
		rel, ok := w.rel(p)
		if !ok {
			return nil
		}
		if info.IsDir() {
			if rel != "" && w.opts.Ignore.Match(rel) {
				return filepath.SkipDir
			}
			if err := w.add(p); err != nil {
				return fmt.Errorf("watching %s: %w", p, err)
			}
			return nil
		}
		if announce && info.Mode().IsRegular() {
			w.apply(vt.Change{Kind: vt.ChangeCreate, Path: rel, Size: info.Size(), ModTime: info.ModTime().Unix()})
		}
		return nil
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, ok := w.rel(ev.Name)
	if !ok || rel == "" || w.ignored(rel) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.removeAll(rel)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := w.fs.Stat(ev.Name)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				w.removeAll(rel)
			}
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) {
				if err := w.addTree(ev.Name, true); err != nil {
					w.logger.Warn("cannot watch new folder", "path", ev.Name, "error", err)
				}
			}
			return
		}
		if !info.Mode().IsRegular() {
			return
		}
		kind := vt.ChangeWrite
		if ev.Has(fsnotify.Create) {
			kind = vt.ChangeCreate
		}
		w.apply(vt.Change{Kind: kind, Path: rel, Size: info.Size(), ModTime: info.ModTime().Unix()})
	}
}

// removeAll reports every tracked file at or below rel as removed.
func (w *Watcher) removeAll(rel string) {
	items, err := w.target.Items(rel, vt.ClassAll)
	if err != nil {
		if !errors.Is(err, vt.ErrNotFound) {
			w.logger.Warn("cannot list removed path", "path", rel, "error", err)
		}
		return
	}
	for _, rec := range items {
		w.apply(vt.Change{Kind: vt.ChangeRemove, Path: rec.Path})
	}
}

func (w *Watcher) apply(c vt.Change) {
	if w.debounced(c) {
		return
	}
	status, changed, err := w.target.ApplyChange(c)
	if err != nil {
		w.logger.Warn("cannot apply change", "kind", c.Kind, "path", c.Path, "error", err)
		return
	}
	if !changed {
		return
	}
	w.logger.Debug("change applied", "kind", c.Kind, "path", c.Path, "status", status)
	if w.opts.OnEvent != nil {
		w.opts.OnEvent(Event{Change: c, Status: status})
	}
}

func (w *Watcher) debounced(c vt.Change) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.clock.Now()
	prev, ok := w.last[c.Path]
	w.last[c.Path] = seen{kind: c.Kind, at: now}
	return ok && w.opts.Debounce > 0 && prev.kind == c.Kind && now.Sub(prev.at) < w.opts.Debounce
}

// rel returns p relative to root in slash form; ok is false outside root.
func (w *Watcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

// ignored skips .verignore matches and the temp and backup files written
// while a database is being saved.
func (w *Watcher) ignored(rel string) bool {
	if w.opts.Ignore.Match(rel) {
		return true
	}
	base := filepath.Base(rel)
	return strings.HasSuffix(base, vt.BackupSuffix) || (strings.HasPrefix(base, ".") && strings.Contains(base, ".tmp-"))
}
