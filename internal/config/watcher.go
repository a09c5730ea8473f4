package config

import (
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a burst of changes is reported.
const DefaultDebounce = 100 * time.Millisecond

// WatcherOp names the watcher step that failed.
type WatcherOp string

const (
	OpInit  WatcherOp = "init"
	OpWatch WatcherOp = "watch"
)

// WatcherError is returned when the filesystem watch cannot be set up.
type WatcherError struct {
	Op   WatcherOp
	Path string
	Err  error
}

func (e *WatcherError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("settings watcher %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("settings watcher %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WatcherError) Unwrap() error {
	return e.Err
}

// ChangeEvent lists the settings files changed during one debounce window.
type ChangeEvent struct {
	Paths []string
}

// Watcher reports changes to the settings files of a project. It watches the
// user and project settings directories rather than the files, so files that
// do not exist yet are picked up when created.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	debounce func(func())

	mu      sync.Mutex
	pending map[string]struct{}

	flushCh chan struct{}
	events  chan ChangeEvent
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewWatcher starts watching the settings directories of projectDir that
// exist. A non-positive debounce selects DefaultDebounce.
func NewWatcher(projectDir string, wait time.Duration) (*Watcher, error) {
	if wait <= 0 {
		wait = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &WatcherError{Op: OpInit, Err: err}
	}

	var dirs []string
	for _, dir := range GetPaths(projectDir).WatchDirs() {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			log().Debug().Str("dir", dir).Msg("settings directory missing, not watching")
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, &WatcherError{Op: OpWatch, Path: dir, Err: err}
		}
		dirs = append(dirs, dir)
	}

	w := &Watcher{
		watcher:  fw,
		dirs:     dirs,
		debounce: debounce.New(wait),
		pending:  make(map[string]struct{}),
		flushCh:  make(chan struct{}, 1),
		events:   make(chan ChangeEvent, 16),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	log().Info().Strs("dirs", dirs).Dur("debounce", wait).Msg("settings watcher initialized")

	go w.run()
	return w, nil
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	return slices.Clone(w.dirs)
}

// Events returns the channel of debounced changes. It is closed by Close.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	defer close(w.events)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case <-w.flushCh:
			if change, ok := w.takePending(); ok {
				select {
				case w.events <- change:
				case <-w.stopCh:
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log().Warn().Err(err).Msg("settings watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !IsSettingsFile(ev.Name) {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	log().Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("settings file event")

	w.mu.Lock()
	w.pending[ev.Name] = struct{}{}
	w.mu.Unlock()

	w.debounce(w.requestFlush)
}

// requestFlush runs on the debounce timer goroutine.
func (w *Watcher) requestFlush() {
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) takePending() (ChangeEvent, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return ChangeEvent{}, false
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	clear(w.pending)
	return ChangeEvent{Paths: paths}, true
}

// Close stops the watcher and releases the filesystem watch.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.watcher.Close()
	})
	return err
}
