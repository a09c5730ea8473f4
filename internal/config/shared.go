package config

import (
	"context"
	"sync"

	"github.com/opencode-ai/toolguard/internal/event"
	"github.com/opencode-ai/toolguard/internal/permission"
	"github.com/opencode-ai/toolguard/pkg/types"
)

// SharedSettings owns the current settings snapshot of a session and the
// permission checker built from it.
//
// A published checker is never mutated. Reload and the runtime rule methods
// build a new checker and swap it in under the write lock, so one Check call
// sees one snapshot from start to finish.
type SharedSettings struct {
	// reloadMu serializes reloads so a slower load never replaces a newer one.
	reloadMu sync.Mutex

	mu       sync.RWMutex
	loader   *Loader
	cwd      string
	settings *types.Settings
	checker  *permission.Checker

	// Runtime rules, re-applied on every rebuild.
	runtimeAllow []string
	runtimeDeny  []string

	bus *event.Bus

	subsMu sync.Mutex
	subs   map[uint64]chan *types.Settings
	nextID uint64
}

// NewSharedSettings loads the settings of projectDir. bus may be nil.
func NewSharedSettings(projectDir string, bus *event.Bus) *SharedSettings {
	loader := NewLoader(projectDir)
	s := newSharedSettings(loader, projectDir, bus)
	s.publish(loader.Load())
	return s
}

// NewStaticSettings wraps settings that are not backed by files. Reload keeps
// the snapshot and re-applies runtime rules.
func NewStaticSettings(settings *types.Settings, cwd string, bus *event.Bus) *SharedSettings {
	if settings == nil {
		settings = &types.Settings{}
	}
	s := newSharedSettings(nil, cwd, bus)
	s.publish(settings)
	return s
}

func newSharedSettings(loader *Loader, cwd string, bus *event.Bus) *SharedSettings {
	return &SharedSettings{
		loader: loader,
		cwd:    cwd,
		bus:    bus,
		subs:   make(map[uint64]chan *types.Settings),
	}
}

func (s *SharedSettings) publish(settings *types.Settings) {
	checker := permission.NewChecker(settings, s.cwd)

	s.mu.Lock()
	for _, r := range s.runtimeAllow {
		checker.AddAllowRule(r)
	}
	for _, r := range s.runtimeDeny {
		checker.AddDenyRule(r)
	}
	s.settings = settings
	s.checker = checker
	s.mu.Unlock()
}

// Check evaluates a tool invocation against the current snapshot.
func (s *SharedSettings) Check(toolName string, toolInput map[string]any) permission.Result {
	return s.Checker().Check(toolName, toolInput)
}

// Checker returns the current checker. It must not be mutated.
func (s *SharedSettings) Checker() *permission.Checker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checker
}

// Settings returns the current snapshot. It must not be mutated.
func (s *SharedSettings) Settings() *types.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Cwd returns the directory rules are resolved against.
func (s *SharedSettings) Cwd() string {
	return s.cwd
}

// Reload re-reads every settings file and swaps in the result. Reloads run
// one at a time; file I/O happens before the snapshot write lock is taken.
func (s *SharedSettings) Reload(ctx context.Context) (*types.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	var (
		settings *types.Settings
		paths    []string
	)
	if s.loader != nil {
		var sources []Source
		settings, sources = s.loader.LoadWithSources()
		for _, src := range sources {
			if src.Loaded {
				paths = append(paths, src.Path)
			}
		}
	} else {
		settings = s.Settings()
	}

	s.publish(settings)

	allow, deny, ask := len(settings.AllowRules()), len(settings.DenyRules()), len(settings.AskRules())
	log().Info().
		Str("cwd", s.cwd).
		Int("allow", allow).
		Int("deny", deny).
		Int("ask", ask).
		Msg("settings reloaded")

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.SettingsReloaded,
			Data: event.SettingsReloadedData{
				ProjectDir: s.cwd,
				Paths:      paths,
				Allow:      allow,
				Deny:       deny,
				Ask:        ask,
			},
		})
	}
	s.notify(settings)

	return settings, nil
}

// AddAllowRule adds a session rule, such as an "always allow" answer. It
// survives reloads but is never written to disk.
func (s *SharedSettings) AddAllowRule(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimeAllow = append(s.runtimeAllow, raw)
	next := s.checker.Clone()
	next.AddAllowRule(raw)
	s.checker = next
}

// AddDenyRule adds a session deny rule. It survives reloads but is never
// written to disk.
func (s *SharedSettings) AddDenyRule(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimeDeny = append(s.runtimeDeny, raw)
	next := s.checker.Clone()
	next.AddDenyRule(raw)
	s.checker = next
}

// Subscribe returns a channel receiving each reloaded snapshot and a
// function that cancels the subscription. Slow subscribers miss snapshots
// rather than blocking reloads.
func (s *SharedSettings) Subscribe() (<-chan *types.Settings, func()) {
	ch := make(chan *types.Settings, 1)

	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

func (s *SharedSettings) notify(settings *types.Settings) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- settings:
		default:
			log().Debug().Msg("settings subscriber busy, dropping snapshot")
		}
	}
}
