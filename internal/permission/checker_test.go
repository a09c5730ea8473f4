package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencode-ai/toolguard/pkg/types"
)

func newTestChecker(t *testing.T, perms types.PermissionSettings) *Checker {
	t.Helper()
	return NewChecker(&types.Settings{Permissions: &perms}, t.TempDir())
}

func TestChecker_NoRulesAsks(t *testing.T) {
	c := NewChecker(&types.Settings{}, t.TempDir())

	res := c.Check("Write", map[string]any{"file_path": "/tmp/test.txt"})
	assert.Equal(t, DecisionAsk, res.Decision)
	assert.Empty(t, res.Rule)
	assert.Empty(t, res.Source)
	assert.False(t, res.Matched())
	assert.False(t, c.HasRules())
}

func TestChecker_NilSettings(t *testing.T) {
	c := NewChecker(nil, "/tmp")
	assert.Equal(t, DecisionAsk, c.Check("Read", nil).Decision)
	assert.Equal(t, "", c.DefaultMode())
}

func TestChecker_DenyOutranksAllowAndAsk(t *testing.T) {
	orders := []types.PermissionSettings{
		{Allow: []string{"Bash"}, Deny: []string{"Bash(rm:*)"}, Ask: []string{"Bash"}},
		{Ask: []string{"Bash(rm -rf build)"}, Allow: []string{"Bash(rm:*)"}, Deny: []string{"Bash"}},
	}

	for _, perms := range orders {
		c := newTestChecker(t, perms)
		res := c.Check("Bash", map[string]any{"command": "rm -rf build"})
		assert.Equal(t, DecisionDeny, res.Decision)
		assert.Equal(t, "deny", res.Source)
	}
}

func TestChecker_AllowBeforeAsk(t *testing.T) {
	c := newTestChecker(t, types.PermissionSettings{
		Allow: []string{"Bash(npm run:*)"},
		Ask:   []string{"Bash"},
	})

	res := c.Check("Bash", map[string]any{"command": "npm run build"})
	assert.Equal(t, DecisionAllow, res.Decision)
	assert.Equal(t, "Bash(npm run:*)", res.Rule)

	res = c.Check("Bash", map[string]any{"command": "npm run build && rm -rf /"})
	assert.Equal(t, DecisionAsk, res.Decision)
	assert.Equal(t, "Bash", res.Rule)
	assert.Equal(t, "ask", res.Source)
}

func TestChecker_FirstMatchWithinBucket(t *testing.T) {
	c := newTestChecker(t, types.PermissionSettings{
		Allow: []string{"Read", "Read(./src/**)"},
	})

	res := c.Check("Read", map[string]any{"file_path": "src/main.go"})
	assert.Equal(t, "Read", res.Rule)
}

func TestChecker_GroupsAndACPPrefix(t *testing.T) {
	c := newTestChecker(t, types.PermissionSettings{
		Allow: []string{"Read"},
		Deny:  []string{"Edit"},
	})

	assert.Equal(t, DecisionAllow, c.Check("mcp__acp__Grep", map[string]any{"pattern": "x"}).Decision)
	assert.Equal(t, DecisionDeny, c.Check("Write", map[string]any{"file_path": "a"}).Decision)
	assert.Equal(t, DecisionAsk, c.Check("WebFetch", map[string]any{"url": "https://x"}).Decision)
}

func TestChecker_MCPFriendlyNames(t *testing.T) {
	c := newTestChecker(t, types.PermissionSettings{Deny: []string{"WebFetch"}})

	res := c.Check("mcp__web-fetch__webReader", map[string]any{"url": "https://x"})
	assert.Equal(t, DecisionDeny, res.Decision)
	assert.Equal(t, "WebFetch", res.Rule)
}

func TestChecker_RuntimeRules(t *testing.T) {
	c := NewChecker(&types.Settings{}, t.TempDir())

	c.AddAllowRule("Bash(npm test)")
	assert.True(t, c.HasRules())
	assert.Equal(t, DecisionAllow, c.Check("Bash", map[string]any{"command": "npm test"}).Decision)

	c.AddDenyRule("Bash")
	assert.Equal(t, DecisionDeny, c.Check("Bash", map[string]any{"command": "npm test"}).Decision)

	allow, deny, ask := c.Rules()
	assert.Len(t, allow, 1)
	assert.Len(t, deny, 1)
	assert.Empty(t, ask)
}

func TestChecker_RuntimeRulesNotPersisted(t *testing.T) {
	settings := &types.Settings{Permissions: &types.PermissionSettings{Allow: []string{"Read"}}}
	c := NewChecker(settings, t.TempDir())
	c.AddAllowRule("Bash")

	assert.Equal(t, []string{"Read"}, settings.AllowRules())
}

func TestChecker_Clone(t *testing.T) {
	c := newTestChecker(t, types.PermissionSettings{Allow: []string{"Read"}})
	clone := c.Clone()
	clone.AddDenyRule("Read")

	assert.Equal(t, DecisionAllow, c.Check("Read", nil).Decision)
	assert.Equal(t, DecisionDeny, clone.Check("Read", nil).Decision)
	assert.Same(t, c.Settings(), clone.Settings())
}

func TestChecker_Accessors(t *testing.T) {
	settings := &types.Settings{Permissions: &types.PermissionSettings{
		AdditionalDirectories: []string{"/data"},
		DefaultMode:           types.String("acceptEdits"),
	}}
	c := NewChecker(settings, "/work")

	assert.Equal(t, "acceptEdits", c.DefaultMode())
	assert.Equal(t, []string{"/data"}, c.AdditionalDirectories())
	assert.Equal(t, "/work", c.Cwd())
	assert.Same(t, settings, c.Settings())
	assert.False(t, c.HasRules())
}
