package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/opencode-ai/toolguard/internal/hook"
)

// RandomString generates a random string of n characters
func RandomString(n int) string {
	bytes := make([]byte, n/2+1)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:n]
}

// ToolUseID returns a fresh tool call id.
func ToolUseID() string {
	return "toolu_" + RandomString(12)
}

// PreToolUse builds a PreToolUse input from a tool input map.
func PreToolUse(sessionID, tool string, input map[string]any) hook.Input {
	raw, err := json.Marshal(input)
	if err != nil {
		panic(err)
	}
	return hook.Input{
		Event:     hook.EventPreToolUse,
		SessionID: sessionID,
		ToolName:  tool,
		ToolInput: raw,
		ToolUseID: ToolUseID(),
	}
}

// Bash builds a Bash PreToolUse input.
func Bash(sessionID, command string) hook.Input {
	return PreToolUse(sessionID, "Bash", map[string]any{"command": command})
}
