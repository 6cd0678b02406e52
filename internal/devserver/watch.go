package devserver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// watcher watches directory trees and individual files, ignoring the build
// output directory.
type watcher struct {
	fsw    *fsnotify.Watcher
	files  map[string]bool
	trees  map[string]bool
	ignore string
}

func newWatcher(dirs, files []string, ignore string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}

	w := &watcher{
		fsw:    fsw,
		files:  map[string]bool{},
		trees:  map[string]bool{},
		ignore: filepath.Clean(ignore),
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			log.Debug().Str("dir", dir).Msg("Watch directory missing, skipping")
			continue
		}
		w.addDirsRecursive(dir)
	}

	// fsnotify watches files through their directory, editors replace
	// files on save which breaks direct file watches
	for _, file := range files {
		file = filepath.Clean(file)
		w.files[file] = true
		if err := fsw.Add(filepath.Dir(file)); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", file, err)
		}
	}

	return w, nil
}

func (w *watcher) Close() error {
	return w.fsw.Close()
}

func (w *watcher) addDirsRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			log.Warn().Err(err).Str("dir", path).Msg("watch add failed")
			return nil
		}
		w.trees[filepath.Clean(path)] = true
		return nil
	})
}

func (w *watcher) ignored(path string) bool {
	if w.ignore == "" || w.ignore == "." {
		return false
	}
	path = filepath.Clean(path)
	return path == w.ignore || strings.HasPrefix(path, w.ignore+string(filepath.Separator))
}

// run forwards relevant events to trigger until ctx is done.
func (w *watcher) run(ctx context.Context, trigger func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				trigger()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// handle reports whether the event should trigger a rebuild and starts
// watching newly created directories.
func (w *watcher) handle(ev fsnotify.Event) bool {
	if shouldIgnoreEvent(ev.Name) || w.ignored(ev.Name) {
		return false
	}

	name := filepath.Clean(ev.Name)
	if !w.trees[filepath.Dir(name)] && !w.files[name] {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(ev.Name)
		}
	}

	log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("File change detected")
	return true
}

// shouldIgnoreEvent returns true for editor and OS noise.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}

// debouncer returns a trigger that calls fn once no trigger has happened
// for delay.
func debouncer(delay time.Duration, fn func()) func() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, fn)
	}
}
