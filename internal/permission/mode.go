package permission

import (
	"fmt"
	"sync"

	"github.com/opencode-ai/toolguard/internal/event"
	"github.com/opencode-ai/toolguard/pkg/types"
)

// Mode is the session-wide permission mode.
type Mode string

const (
	ModeDefault           Mode = "default"
	ModePlan              Mode = "plan"
	ModeAcceptEdits       Mode = "acceptEdits"
	ModeBypassPermissions Mode = "bypassPermissions"
	ModeDontAsk           Mode = "dontAsk"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeDefault, ModeAcceptEdits, ModePlan, ModeDontAsk, ModeBypassPermissions}

// ParseMode parses a camelCase mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown permission mode %q", s)
}

// ModeFromSettings picks permissions.defaultMode, then permissionMode, then
// ModeDefault. Unknown names are skipped.
func ModeFromSettings(s *types.Settings) Mode {
	if s == nil {
		return ModeDefault
	}
	candidates := []string{s.DefaultMode()}
	if s.PermissionMode != nil {
		candidates = append(candidates, *s.PermissionMode)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		m, err := ParseMode(c)
		if err != nil {
			log().Warn().Str("mode", c).Msg("ignoring unknown permission mode in settings")
			continue
		}
		return m
	}
	return ModeDefault
}

// SharedMode holds the current mode of a session. It is safe for concurrent
// use; Set publishes event.ModeChanged when the mode changes.
type SharedMode struct {
	mu   sync.RWMutex
	mode Mode
	bus  *event.Bus
}

// NewSharedMode creates a SharedMode. bus may be nil.
func NewSharedMode(initial Mode, bus *event.Bus) *SharedMode {
	if initial == "" {
		initial = ModeDefault
	}
	return &SharedMode{mode: initial, bus: bus}
}

// Get returns the current mode.
func (s *SharedMode) Get() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Set replaces the current mode.
func (s *SharedMode) Set(mode Mode) {
	s.mu.Lock()
	prev := s.mode
	s.mode = mode
	s.mu.Unlock()

	if prev == mode {
		return
	}

	log().Info().
		Str("from", string(prev)).
		Str("to", string(mode)).
		Msg("permission mode changed")

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.ModeChanged,
			Data: event.ModeChangedData{From: string(prev), To: string(mode)},
		})
	}
}
