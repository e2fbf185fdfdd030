// Package watch reports changed design documents so their diagrams can be
// rendered again.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Options configures a Watcher.
type Options struct {
	// Include selects files inside watched directories, matched against
	// the slash path relative to the directory. Empty means "**/*.json".
	Include []string

	// Ignore skips files and directories, matched like Include.
	Ignore []string

	Debounce time.Duration
}

// Watcher watches design files and directories of design files.
// Individual files are watched through their parent directory so editors
// that replace a file on save keep being tracked.
type Watcher struct {
	opts   Options
	fs     *fsnotify.Watcher
	logger *zap.Logger

	files map[string]bool   // explicitly watched files
	roots map[string]string // watched directory -> root it was added under
}

// New creates a watcher over paths, each a file or a directory.
func New(paths []string, opts Options, logger *zap.Logger) (*Watcher, error) {
	if len(opts.Include) == 0 {
		opts.Include = []string{"**/*.json"}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		opts:   opts,
		fs:     fw,
		logger: logger.Named("watch"),
		files:  make(map[string]bool),
		roots:  make(map[string]string),
	}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.fs.Add(filepath.Dir(abs))
	}
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != abs && w.ignored(abs, p) {
			return filepath.SkipDir
		}
		w.roots[p] = abs
		w.logger.Debug("Watching directory", zap.String("path", p))
		return w.fs.Add(p)
	})
}

func rel(root, path string) string {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}

func (w *Watcher) ignored(root, path string) bool {
	r := rel(root, path)
	for _, pattern := range w.opts.Ignore {
		if ok, _ := doublestar.Match(pattern, r); ok {
			return true
		}
	}
	return false
}

// relevant reports whether a change to path should be reported.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	root, ok := w.roots[filepath.Dir(path)]
	if !ok || w.ignored(root, path) {
		return false
	}
	r := rel(root, path)
	for _, pattern := range w.opts.Include {
		if ok, _ := doublestar.Match(pattern, r); ok {
			return true
		}
	}
	return false
}

// Run reports changed files in batches, each at most once per debounce
// window, until ctx is done. onChange runs on the Run goroutine, so
// batches never overlap. Run closes the watcher when it returns.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	defer w.fs.Close()

	batches := make(chan []string)
	d := newDebouncer(w.opts.Debounce, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-batches:
			w.logger.Info("Files changed", zap.Strings("paths", paths))
			onChange(ctx, paths)
		case ev, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			w.handle(ev, d)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			w.logger.Warn("Watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, d *debouncer) {
	if ev.Has(fsnotify.Create) {
		// New directories under a watched root are watched too.
		if root, ok := w.roots[filepath.Dir(ev.Name)]; ok {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if !w.ignored(root, ev.Name) {
					if err := w.fs.Add(ev.Name); err != nil {
						w.logger.Warn("Cannot watch directory", zap.String("path", ev.Name), zap.Error(err))
					} else {
						w.roots[ev.Name] = root
					}
				}
				return
			}
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	if !w.relevant(ev.Name) {
		return
	}
	// A rename away leaves nothing to render.
	if _, err := os.Stat(ev.Name); err != nil {
		return
	}
	d.add(ev.Name)
}

// String describes what the watcher covers.
func (w *Watcher) String() string {
	return fmt.Sprintf("%d files, %d directories", len(w.files), len(w.roots))
}
