package permission

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/toolguard/internal/logging"
	"github.com/opencode-ai/toolguard/internal/rule"
	"github.com/opencode-ai/toolguard/pkg/types"
)

// Checker evaluates tool invocations against the allow, deny and ask rules
// of one settings snapshot.
type Checker struct {
	mu       sync.RWMutex
	settings *types.Settings
	cwd      string
	allow    []rule.Rule
	deny     []rule.Rule
	ask      []rule.Rule
}

// NewChecker pre-parses the rule lists of settings against cwd.
func NewChecker(settings *types.Settings, cwd string) *Checker {
	if settings == nil {
		settings = &types.Settings{}
	}
	return &Checker{
		settings: settings,
		cwd:      cwd,
		allow:    parseRules(settings.AllowRules(), cwd),
		deny:     parseRules(settings.DenyRules(), cwd),
		ask:      parseRules(settings.AskRules(), cwd),
	}
}

func parseRules(raw []string, cwd string) []rule.Rule {
	rules := make([]rule.Rule, 0, len(raw))
	for _, r := range raw {
		rules = append(rules, rule.ParseWithGlob(r, cwd))
	}
	return rules
}

// Check evaluates deny rules, then allow rules, then ask rules. The first
// match in each list wins. With no match the result is Ask with no rule.
func (c *Checker) Check(toolName string, toolInput map[string]any) Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := c.check(toolName, toolInput)

	log().Debug().
		Str("tool", toolName).
		Str("decision", string(result.Decision)).
		Str("rule", result.Rule).
		Msg("permission check")

	return result
}

func (c *Checker) check(toolName string, toolInput map[string]any) Result {
	if r, ok := firstMatch(c.deny, toolName, toolInput, c.cwd); ok {
		return denyResult(r.Raw)
	}
	if r, ok := firstMatch(c.allow, toolName, toolInput, c.cwd); ok {
		return allowResult(r.Raw)
	}
	if r, ok := firstMatch(c.ask, toolName, toolInput, c.cwd); ok {
		return askResult(r.Raw)
	}
	return askResult("")
}

func firstMatch(rules []rule.Rule, toolName string, toolInput map[string]any, cwd string) (rule.Rule, bool) {
	for _, r := range rules {
		if r.Matches(toolName, toolInput, cwd) {
			return r, true
		}
	}
	return rule.Rule{}, false
}

// AddAllowRule appends a runtime allow rule. It is not persisted.
func (c *Checker) AddAllowRule(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allow = append(c.allow, rule.ParseWithGlob(raw, c.cwd))
}

// AddDenyRule appends a runtime deny rule. It is not persisted.
func (c *Checker) AddDenyRule(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deny = append(c.deny, rule.ParseWithGlob(raw, c.cwd))
}

// Clone returns an independent copy sharing the same settings snapshot.
func (c *Checker) Clone() *Checker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Checker{
		settings: c.settings,
		cwd:      c.cwd,
		allow:    slices.Clone(c.allow),
		deny:     slices.Clone(c.deny),
		ask:      slices.Clone(c.ask),
	}
}

// HasRules reports whether any allow, deny or ask rule is loaded.
func (c *Checker) HasRules() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.allow)+len(c.deny)+len(c.ask) > 0
}

// Rules returns the loaded rules per bucket.
func (c *Checker) Rules() (allow, deny, ask []rule.Rule) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.allow), slices.Clone(c.deny), slices.Clone(c.ask)
}

// DefaultMode returns permissions.defaultMode from the settings, or "".
func (c *Checker) DefaultMode() string {
	return c.settings.DefaultMode()
}

// AdditionalDirectories returns permissions.additionalDirectories.
func (c *Checker) AdditionalDirectories() []string {
	return c.settings.AdditionalDirectories()
}

// Settings returns the settings snapshot the checker was built from.
func (c *Checker) Settings() *types.Settings {
	return c.settings
}

// Cwd returns the directory relative rule paths are resolved against.
func (c *Checker) Cwd() string {
	return c.cwd
}

func log() *zerolog.Logger {
	return logging.Component("permission")
}
