// Package filewatch reports debounced changes to a fixed set of input files
// and directories.
package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 2 * time.Second

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watcher watches input paths.  A file path matches events on that file; a
// directory path matches events on any file directly inside it.
type Watcher struct {
	files    map[string]bool
	dirs     map[string]bool
	watch    []string
	debounce time.Duration
	logger   logging.Logger
}

// New resolves paths.  Empty paths are ignored.  A file that does not exist
// yet is watched through its parent directory, which must exist.
func New(paths []string, debounce time.Duration, logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		panic("filewatch: logger is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{files: map[string]bool{}, dirs: map[string]bool{}, debounce: debounce, logger: logger}
	seen := map[string]bool{}
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			w.watch = append(w.watch, dir)
		}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIO, "resolve "+p)
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			w.dirs[abs] = true
			add(abs)
			continue
		}
		parent := filepath.Dir(abs)
		if _, err := os.Stat(parent); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIO, "watch "+p)
		}
		w.files[abs] = true
		add(parent)
	}
	if len(w.watch) == 0 {
		return nil, errors.New(errors.ErrCodeConfig, "no paths to watch")
	}
	sort.Strings(w.watch)
	return w, nil
}

// Paths returns the directories registered with the OS watcher.
func (w *Watcher) Paths() []string { return append([]string(nil), w.watch...) }

func (w *Watcher) matches(name string) bool {
	name = filepath.Clean(name)
	return w.files[name] || w.dirs[filepath.Dir(name)]
}

// Run blocks until ctx is done.  onChange is called with the sorted changed
// paths once no further event arrived for the debounce interval.  Calls are
// sequential; events seen while onChange runs are batched into the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "create file watcher")
	}
	defer fw.Close()
	for _, dir := range w.watch {
		if err := fw.Add(dir); err != nil {
			return errors.Wrap(err, errors.ErrCodeIO, "watch "+dir)
		}
	}
	w.logger.Info("watching inputs", logging.Strings("dirs", w.watch), logging.Duration("debounce", w.debounce))

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = map[string]bool{}
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(relevantOps) || !w.matches(ev.Name) {
				continue
			}
			w.logger.Debug("input changed", logging.String("path", ev.Name), logging.String("op", ev.Op.String()))
			pending[filepath.Clean(ev.Name)] = true
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
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Err(err))
		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = map[string]bool{}
			onChange(ctx, changed)
		}
	}
}

//Personal.AI order the ending
