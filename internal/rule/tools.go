package rule

import (
	"slices"
	"strconv"
	"strings"
)

// Groups maps a group rule name to the tools it covers.
var Groups = map[string][]string{
	"Read": {"Read", "Grep", "Glob", "LS"},
	"Edit": {"Edit", "Write"},
	"Task": {"Task", "TaskOutput"},
	"Web":  {"WebSearch", "WebFetch"},
}

// KnownTools lists the tool names rules are expected to reference.
var KnownTools = []string{
	"Bash", "BashOutput", "KillShell",
	"Read", "Write", "Edit", "MultiEdit",
	"Grep", "Glob", "LS",
	"NotebookRead", "NotebookEdit",
	"Task", "TaskOutput", "TodoWrite",
	"WebFetch", "WebSearch",
	"SlashCommand", "Skill", "ExitPlanMode",
	"Web",
}

// mcpFriendlyNames maps external MCP server names to the built-in tool they
// stand in for. Entries ending in "*" match by prefix.
var mcpFriendlyNames = []struct {
	server string
	tool   string
}{
	{"web-fetch", "WebFetch"},
	{"web-reader", "WebFetch"},
	{"web-search*", "WebSearch"},
}

// InGroup reports whether tool belongs to the group named group.
func InGroup(group, tool string) bool {
	return slices.Contains(Groups[group], tool)
}

// FriendlyName returns the built-in tool name an external MCP tool maps to,
// e.g. "mcp__web-fetch__webReader" maps to "WebFetch".
func FriendlyName(toolName string) (string, bool) {
	rest, ok := strings.CutPrefix(toolName, "mcp__")
	if !ok {
		return "", false
	}
	server, _, ok := strings.Cut(rest, "__")
	if !ok || server == "" {
		return "", false
	}

	for _, entry := range mcpFriendlyNames {
		if prefix, wildcard := strings.CutSuffix(entry.server, "*"); wildcard {
			if strings.HasPrefix(server, prefix) {
				return entry.tool, true
			}
		} else if server == entry.server {
			return entry.tool, true
		}
	}
	return "", false
}

// IsBashTool reports whether the tool executes shell commands.
func IsBashTool(name string) bool {
	switch name {
	case "Bash", "BashOutput", "KillShell":
		return true
	}
	return false
}

// IsFileTool reports whether the tool's argument is a file path or pattern.
func IsFileTool(name string) bool {
	switch name {
	case "Read", "Write", "Edit", "Grep", "Glob", "LS", "NotebookRead", "NotebookEdit":
		return true
	}
	return false
}

// IsKnownTool reports whether name is a built-in tool or group.
func IsKnownTool(name string) bool {
	return slices.Contains(KnownTools, name)
}

// ExtractArgument returns the input field a rule argument is compared to.
// The boolean is false when the tool has no such field or it is not a string.
func ExtractArgument(toolName string, input map[string]any) (string, bool) {
	switch toolName {
	case "Bash", "BashOutput", "KillShell", "SlashCommand":
		return stringField(input, "command")
	case "Read", "Write", "Edit", "NotebookRead", "NotebookEdit":
		return firstField(input, "file_path", "path")
	case "Grep", "Glob", "LS":
		return firstField(input, "path", "pattern")
	case "Task":
		return firstField(input, "subagent_type", "description")
	case "TaskOutput":
		return stringField(input, "task_id")
	case "TodoWrite":
		todos, ok := input["todos"].([]any)
		if !ok {
			return "0", true
		}
		return strconv.Itoa(len(todos)), true
	case "Skill":
		return stringField(input, "skill")
	}
	return "", false
}

func stringField(input map[string]any, key string) (string, bool) {
	s, ok := input[key].(string)
	return s, ok
}

// firstField uses the first key present in input, even when its value is
// not a string.
func firstField(input map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := input[key]; ok {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}
