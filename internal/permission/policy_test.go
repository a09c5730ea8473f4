package permission

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_BypassAndAcceptEditsAllowEverything(t *testing.T) {
	for _, mode := range []Mode{ModeBypassPermissions, ModeAcceptEdits} {
		for _, tool := range []string{"Bash", "Write", "WebFetch", "mcp__acp__Edit"} {
			res := Evaluate(mode, tool, map[string]any{"command": "rm -rf /"}, "")
			assert.Equal(t, PolicyAllow, res.Action, "%s %s", mode, tool)
			assert.NotEmpty(t, res.Reason)
			assert.True(t, res.Terminal())
		}
	}
}

func TestEvaluate_Default(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		input     map[string]any
		action    PolicyAction
		dangerous bool
	}{
		{"read", "Read", map[string]any{"file_path": "/etc/hosts"}, PolicyAllow, false},
		{"acp grep", "mcp__acp__Grep", map[string]any{}, PolicyAllow, false},
		{"notebook read", "NotebookRead", map[string]any{}, PolicyAllow, false},
		{"safe bash", "Bash", map[string]any{"command": "ls -la"}, PolicyAllow, false},
		{"dangerous bash", "Bash", map[string]any{"command": "mkdir x"}, PolicyContinue, true},
		{"other bash", "Bash", map[string]any{"command": "npm test"}, PolicyContinue, false},
		{"bash without command", "Bash", map[string]any{}, PolicyContinue, false},
		{"write", "Write", map[string]any{"file_path": "/tmp/x"}, PolicyContinue, false},
		{"web", "WebFetch", map[string]any{}, PolicyContinue, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(ModeDefault, tt.tool, tt.input, "")
			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, tt.dangerous, res.Dangerous)
		})
	}
}

func TestEvaluate_DangerousIsAdvisory(t *testing.T) {
	res := Evaluate(ModeDefault, "Bash", map[string]any{"command": "rm -rf build"}, "")
	assert.Equal(t, PolicyContinue, res.Action)
	assert.False(t, res.Terminal())
	assert.True(t, res.Dangerous)
	assert.Equal(t, "runs rm", res.DangerReason)
}

func TestEvaluate_Plan(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	plansDir := "~/.claude/plans"

	tests := []struct {
		name   string
		tool   string
		input  map[string]any
		action PolicyAction
	}{
		{"write outside", "Write", map[string]any{"file_path": "/tmp/test.txt"}, PolicyDeny},
		{"write to plans", "Write", map[string]any{"file_path": "~/.claude/plans/test.md"}, PolicyAllow},
		{"edit absolute plans path", "Edit", map[string]any{"file_path": filepath.Join(home, ".claude", "plans", "a.md")}, PolicyAllow},
		{"escape plans dir", "Edit", map[string]any{"file_path": "~/.claude/plans/../settings.json"}, PolicyDeny},
		{"sibling prefix", "Write", map[string]any{"file_path": "~/.claude/plans-old/x.md"}, PolicyDeny},
		{"relative path", "Write", map[string]any{"file_path": "plan.md"}, PolicyDeny},
		{"missing path", "Write", map[string]any{}, PolicyDeny},
		{"notebook edit", "NotebookEdit", map[string]any{"notebook_path": "/tmp/n.ipynb"}, PolicyDeny},
		{"bash", "Bash", map[string]any{"command": "ls"}, PolicyDeny},
		{"bash targeting plans", "Bash", map[string]any{"command": "echo x > ~/.claude/plans/p.md"}, PolicyDeny},
		{"read", "Read", map[string]any{"file_path": "/etc/hosts"}, PolicyAllow},
		{"other", "WebSearch", map[string]any{"query": "go"}, PolicyContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(ModePlan, tt.tool, tt.input, plansDir)
			assert.Equal(t, tt.action, res.Action)
			if res.Action == PolicyDeny {
				assert.Contains(t, res.Reason, "plan mode")
			}
		})
	}
}

func TestEvaluate_PlanWithoutPlansDir(t *testing.T) {
	res := Evaluate(ModePlan, "Write", map[string]any{"file_path": "/tmp/plans/x.md"}, "")
	assert.Equal(t, PolicyDeny, res.Action)
}

func TestEvaluate_PlanAcceptsHomePlansWithMovedConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	configDir := filepath.Join(home, "custom-config")
	t.Setenv("CLAUDE_CONFIG_DIR", configDir)
	plansDir := filepath.Join(configDir, "plans")

	res := Evaluate(ModePlan, "Write", map[string]any{"file_path": "~/.claude/plans/test.md"}, plansDir)
	assert.Equal(t, PolicyAllow, res.Action)

	res = Evaluate(ModePlan, "Write", map[string]any{"file_path": filepath.Join(plansDir, "test.md")}, plansDir)
	assert.Equal(t, PolicyAllow, res.Action)

	res = Evaluate(ModePlan, "Write", map[string]any{"file_path": filepath.Join(configDir, "settings.json")}, plansDir)
	assert.Equal(t, PolicyDeny, res.Action)
}

func TestEvaluate_DontAskFallsThrough(t *testing.T) {
	for _, tool := range []string{"Read", "Bash", "Write"} {
		res := Evaluate(ModeDontAsk, tool, map[string]any{"command": "ls"}, "")
		assert.Equal(t, PolicyContinue, res.Action)
		assert.False(t, res.Dangerous)
	}
}

func TestEvaluate_UnknownModeFallsThrough(t *testing.T) {
	res := Evaluate(Mode("custom"), "Read", nil, "")
	assert.Equal(t, PolicyContinue, res.Action)
}
