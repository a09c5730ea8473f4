package event

// EventType represents the type of event.
type EventType string

const (
	SettingsChanged    EventType = "settings.changed"
	SettingsReloaded   EventType = "settings.reloaded"
	ModeChanged        EventType = "permission.mode_changed"
	PermissionDeferred EventType = "permission.deferred"
	DangerousCommand   EventType = "permission.dangerous_command"
	ToolCallFailed     EventType = "tool.call_failed"
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// SettingsChangedData is the data for settings.changed events.
type SettingsChangedData struct {
	Paths []string `json:"paths"`
}

// SettingsReloadedData is the data for settings.reloaded events.
type SettingsReloadedData struct {
	ProjectDir string   `json:"projectDir"`
	Paths      []string `json:"paths,omitempty"`
	Allow      int      `json:"allow"`
	Deny       int      `json:"deny"`
	Ask        int      `json:"ask"`
}

// ModeChangedData is the data for permission.mode_changed events.
type ModeChangedData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PermissionDeferredData is the data for permission.deferred events.
type PermissionDeferredData struct {
	SessionID string `json:"sessionID,omitempty"`
	ToolName  string `json:"toolName"`
	ToolUseID string `json:"toolUseID,omitempty"`
	CacheKey  string `json:"cacheKey"`
	Rule      string `json:"rule,omitempty"`
}

// DangerousCommandData is the data for permission.dangerous_command events.
type DangerousCommandData struct {
	SessionID string `json:"sessionID,omitempty"`
	Command   string `json:"command"`
	Reason    string `json:"reason"`
}

// ToolCallFailedData is the payload of tool.call_failed messages. It resolves
// a tool call the client already rendered as pending.
type ToolCallFailedData struct {
	SessionID string         `json:"sessionID"`
	ToolUseID string         `json:"toolUseID"`
	ToolName  string         `json:"toolName"`
	Title     string         `json:"title,omitempty"`
	Reason    string         `json:"reason"`
	RawOutput map[string]any `json:"rawOutput,omitempty"`
}
