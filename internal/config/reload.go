package config

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opencode-ai/toolguard/internal/event"
)

// AutoReloader reloads a SharedSettings whenever its settings files change.
type AutoReloader struct {
	watcher *Watcher
	shared  *SharedSettings

	cancel   context.CancelFunc
	doneCh   chan struct{}
	reloaded chan ChangeEvent
	running  atomic.Bool
	stopOnce sync.Once
}

// StartAutoReload watches the settings of projectDir and reloads shared on
// every debounced change. Watcher construction errors are returned.
func StartAutoReload(ctx context.Context, projectDir string, shared *SharedSettings, wait time.Duration) (*AutoReloader, error) {
	w, err := NewWatcher(projectDir, wait)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &AutoReloader{
		watcher:  w,
		shared:   shared,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
		reloaded: make(chan ChangeEvent, 8),
	}
	r.running.Store(true)

	go r.run(ctx)
	return r, nil
}

func (r *AutoReloader) run(ctx context.Context) {
	defer close(r.doneCh)
	defer r.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-r.watcher.Events():
			if !ok {
				return
			}
			r.reload(ctx, change)
		}
	}
}

func (r *AutoReloader) reload(ctx context.Context, change ChangeEvent) {
	log().Info().Strs("paths", change.Paths).Msg("settings changed, reloading")

	if r.shared.bus != nil {
		r.shared.bus.Publish(event.Event{
			Type: event.SettingsChanged,
			Data: event.SettingsChangedData{Paths: change.Paths},
		})
	}

	if _, err := r.shared.Reload(ctx); err != nil {
		log().Warn().Err(err).Msg("settings reload skipped")
		return
	}

	select {
	case r.reloaded <- change:
	default:
		log().Debug().Msg("reload signal dropped, no reader")
	}
}

// Reloaded receives the change that triggered each completed reload.
func (r *AutoReloader) Reloaded() <-chan ChangeEvent {
	return r.reloaded
}

// Running reports whether the reload loop is active.
func (r *AutoReloader) Running() bool {
	return r.running.Load()
}

// Stop cancels the reload loop, waits for an in-flight reload to finish and
// releases the filesystem watch.
func (r *AutoReloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		r.cancel()
		<-r.doneCh
		err = r.watcher.Close()
	})
	return err
}
