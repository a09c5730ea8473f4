package types

import (
	"encoding/json"
	"maps"
	"slices"
)

// Settings represents one settings.json document, or the merge of several.
// Pointer and slice fields distinguish "absent" (nil) from "present".
type Settings struct {
	// Prompt and model selection
	SystemPrompt   *string `json:"systemPrompt,omitempty"`
	PermissionMode *string `json:"permissionMode,omitempty"`
	Model          *string `json:"model,omitempty"`
	SmallFastModel *string `json:"smallFastModel,omitempty"`
	APIBaseURL     *string `json:"apiBaseUrl,omitempty"`

	// Legacy tool lists
	AllowedTools []string `json:"allowedTools,omitempty"`
	DeniedTools  []string `json:"deniedTools,omitempty"`

	// Rule based permissions
	Permissions *PermissionSettings `json:"permissions,omitempty"`

	MCPServers map[string]MCPServerConfig `json:"mcpServers,omitempty"`
	Env        map[string]string          `json:"env,omitempty"`

	// Extra holds every top-level key this type does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// PermissionSettings holds the allow/deny/ask rule lists.
type PermissionSettings struct {
	Allow                 []string `json:"allow,omitempty"`
	Deny                  []string `json:"deny,omitempty"`
	Ask                   []string `json:"ask,omitempty"`
	AdditionalDirectories []string `json:"additionalDirectories,omitempty"`
	DefaultMode           *string  `json:"defaultMode,omitempty"`
}

// MCPServerConfig describes an MCP server launched over stdio.
type MCPServerConfig struct {
	Command  string            `json:"command"`
	Args     []string          `json:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Disabled bool              `json:"disabled,omitempty"`
}

var knownSettingsKeys = []string{
	"systemPrompt",
	"permissionMode",
	"model",
	"smallFastModel",
	"apiBaseUrl",
	"allowedTools",
	"deniedTools",
	"permissions",
	"mcpServers",
	"env",
}

// settingsFields has the same layout as Settings without its JSON methods.
type settingsFields Settings

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var fields settingsFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range knownSettingsKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		fields.Extra = raw
	} else {
		fields.Extra = nil
	}

	*s = Settings(fields)
	return nil
}

// MarshalJSON encodes the known fields together with Extra. Known fields win
// over an Extra entry with the same key.
func (s Settings) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(settingsFields(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return data, nil
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for key, value := range s.Extra {
		if _, ok := out[key]; !ok {
			out[key] = value
		}
	}
	return json.Marshal(out)
}

// Merge overlays other onto s. Present scalars and legacy tool lists replace,
// permission rule lists are appended, maps are overlaid by key, and
// additionalDirectories/defaultMode are replaced when present.
func (s *Settings) Merge(other *Settings) {
	if other == nil {
		return
	}

	mergeString(&s.SystemPrompt, other.SystemPrompt)
	mergeString(&s.PermissionMode, other.PermissionMode)
	mergeString(&s.Model, other.Model)
	mergeString(&s.SmallFastModel, other.SmallFastModel)
	mergeString(&s.APIBaseURL, other.APIBaseURL)

	if other.AllowedTools != nil {
		s.AllowedTools = slices.Clone(other.AllowedTools)
	}
	if other.DeniedTools != nil {
		s.DeniedTools = slices.Clone(other.DeniedTools)
	}

	if other.Permissions != nil {
		if s.Permissions == nil {
			s.Permissions = &PermissionSettings{}
		}
		s.Permissions.merge(other.Permissions)
	}

	if other.MCPServers != nil {
		if s.MCPServers == nil {
			s.MCPServers = make(map[string]MCPServerConfig, len(other.MCPServers))
		}
		for name, server := range other.MCPServers {
			s.MCPServers[name] = server.Clone()
		}
	}

	if other.Env != nil {
		if s.Env == nil {
			s.Env = make(map[string]string, len(other.Env))
		}
		maps.Copy(s.Env, other.Env)
	}

	if len(other.Extra) > 0 {
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage, len(other.Extra))
		}
		for key, value := range other.Extra {
			s.Extra[key] = slices.Clone(value)
		}
	}
}

func (p *PermissionSettings) merge(other *PermissionSettings) {
	p.Allow = concat(p.Allow, other.Allow)
	p.Deny = concat(p.Deny, other.Deny)
	p.Ask = concat(p.Ask, other.Ask)
	if other.AdditionalDirectories != nil {
		p.AdditionalDirectories = slices.Clone(other.AdditionalDirectories)
	}
	if other.DefaultMode != nil {
		mode := *other.DefaultMode
		p.DefaultMode = &mode
	}
}

// concat appends b to a copy of a. A present b keeps the result present.
func concat(a, b []string) []string {
	if b == nil {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func mergeString(dst **string, src *string) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := &Settings{}
	out.Merge(s)
	return out
}

// Clone returns a deep copy of p.
func (p *PermissionSettings) Clone() *PermissionSettings {
	if p == nil {
		return nil
	}
	out := &PermissionSettings{
		Allow:                 slices.Clone(p.Allow),
		Deny:                  slices.Clone(p.Deny),
		Ask:                   slices.Clone(p.Ask),
		AdditionalDirectories: slices.Clone(p.AdditionalDirectories),
	}
	if p.DefaultMode != nil {
		mode := *p.DefaultMode
		out.DefaultMode = &mode
	}
	return out
}

// Clone returns a deep copy of c.
func (c MCPServerConfig) Clone() MCPServerConfig {
	c.Args = slices.Clone(c.Args)
	c.Env = maps.Clone(c.Env)
	return c
}

// AllowRules returns the allow rule list, or nil.
func (s *Settings) AllowRules() []string {
	if s == nil || s.Permissions == nil {
		return nil
	}
	return s.Permissions.Allow
}

// DenyRules returns the deny rule list, or nil.
func (s *Settings) DenyRules() []string {
	if s == nil || s.Permissions == nil {
		return nil
	}
	return s.Permissions.Deny
}

// AskRules returns the ask rule list, or nil.
func (s *Settings) AskRules() []string {
	if s == nil || s.Permissions == nil {
		return nil
	}
	return s.Permissions.Ask
}

// DefaultMode returns permissions.defaultMode, or "" when unset.
func (s *Settings) DefaultMode() string {
	if s == nil || s.Permissions == nil || s.Permissions.DefaultMode == nil {
		return ""
	}
	return *s.Permissions.DefaultMode
}

// AdditionalDirectories returns permissions.additionalDirectories, or nil.
func (s *Settings) AdditionalDirectories() []string {
	if s == nil || s.Permissions == nil {
		return nil
	}
	return s.Permissions.AdditionalDirectories
}

// IsToolAllowed applies the legacy allowedTools/deniedTools lists.
// A denied entry always wins; a present allowed list is exhaustive.
func (s *Settings) IsToolAllowed(name string) bool {
	if s == nil {
		return true
	}
	if slices.Contains(s.DeniedTools, name) {
		return false
	}
	if s.AllowedTools != nil {
		return slices.Contains(s.AllowedTools, name)
	}
	return true
}

// String returns a pointer to v, for building Settings literals.
func String(v string) *string {
	return &v
}
