package game

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher triggers a callback when a YAML file under a config tree is
// added, modified or removed. It listens for fsnotify events on every
// directory of the tree and coalesces bursts within Debounce, so an editor
// saving by rename-over fires once. If the platform watcher cannot be
// created it polls the tree every Debounce instead.
type FileWatcher struct {
	Root     string
	Debounce time.Duration
	onChange func(string) // called with path that changed

	notify   *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
	stopped bool

	lastMTime map[string]time.Time // polling fallback only
}

// NewFileWatcher creates a watcher for the tree at root.
func NewFileWatcher(root string, debounce time.Duration, onChange func(string)) *FileWatcher {
	return &FileWatcher{
		Root:      root,
		Debounce:  debounce,
		onChange:  onChange,
		stopCh:    make(chan struct{}),
		pending:   make(map[string]bool),
		lastMTime: make(map[string]time.Time),
	}
}

// Polling reports whether the watcher fell back to scanning the tree.
func (w *FileWatcher) Polling() bool { return w.notify == nil }

// Start begins watching in a goroutine.
func (w *FileWatcher) Start() {
	if nw, err := fsnotify.NewWatcher(); err == nil {
		w.notify = nw
		w.addTree(w.Root, false)
		w.wg.Add(1)
		go w.run()
		return
	}

	// prime cache
	w.scanAll(true)
	ticker := time.NewTicker(w.Debounce)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.scanAll(false)
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the watcher. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.notify != nil {
			w.notify.Close()
		}
		w.wg.Wait()
		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *FileWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.notify.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case _, ok := <-w.notify.Errors:
			// overflow or a vanished directory; the next event still reloads
			if !ok {
				return
			}
		}
	}
}

func (w *FileWatcher) handleEvent(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addTree(ev.Name, true)
			return
		}
	}
	if !isYAML(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	w.schedule(ev.Name)
}

// addTree subscribes to dir and every directory below it. fsnotify only
// reports direct children. For a directory that appeared after Start, files
// written before its subscription are reported as changed.
func (w *FileWatcher) addTree(dir string, report bool) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
		case d.IsDir():
			_ = w.notify.Add(p)
		case report && isYAML(p):
			w.schedule(p)
		}
		return nil
	})
}

func (w *FileWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[path] = true
	if w.timer == nil {
		w.timer = time.AfterFunc(w.Debounce, w.flush)
	} else {
		w.timer.Reset(w.Debounce)
	}
}

func (w *FileWatcher) flush() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if w.onChange == nil {
		return
	}
	slices.Sort(paths)
	for _, p := range paths {
		w.onChange(p)
	}
}

// scanAll walks the tree and invokes onChange for each file that changed since
// the last scan.
func (w *FileWatcher) scanAll(prime bool) {
	seen := make(map[string]bool, len(w.lastMTime))
	var changed []string
	_ = filepath.WalkDir(w.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are retried on the next tick
			return nil
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		seen[p] = true
		mt := fi.ModTime()
		last, ok := w.lastMTime[p]
		if !ok || !mt.Equal(last) {
			w.lastMTime[p] = mt
			changed = append(changed, p)
		}
		return nil
	})
	for p := range w.lastMTime {
		if !seen[p] {
			delete(w.lastMTime, p)
			changed = append(changed, p)
		}
	}
	if prime || w.onChange == nil {
		return
	}
	for _, p := range changed {
		w.onChange(p)
	}
}

func isYAML(p string) bool { return strings.HasSuffix(p, ".yaml") }
