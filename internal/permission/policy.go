package permission

import (
	"fmt"
	"path/filepath"

	"github.com/opencode-ai/toolguard/internal/rule"
)

// PolicyAction is the outcome of the mode policy.
type PolicyAction string

const (
	PolicyAllow    PolicyAction = "allow"
	PolicyDeny     PolicyAction = "deny"
	PolicyContinue PolicyAction = "continue" // fall through to rule evaluation
)

// PolicyResult is the outcome of Evaluate.
type PolicyResult struct {
	Action PolicyAction
	Reason string

	// Dangerous flags a Bash command the heuristic considers risky. It never
	// changes Action.
	Dangerous    bool
	DangerReason string
}

// Terminal reports whether the result decides the invocation.
func (r PolicyResult) Terminal() bool {
	return r.Action == PolicyAllow || r.Action == PolicyDeny
}

// ReadOnlyTools never modify anything.
var ReadOnlyTools = map[string]bool{
	"Read":         true,
	"Grep":         true,
	"Glob":         true,
	"LS":           true,
	"NotebookRead": true,
}

// PlanWriteTools may only target the plans directory in plan mode.
var PlanWriteTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"NotebookEdit": true,
}

func policyContinue() PolicyResult {
	return PolicyResult{Action: PolicyContinue}
}

func policyAllow(reason string) PolicyResult {
	return PolicyResult{Action: PolicyAllow, Reason: reason}
}

func policyDeny(reason string) PolicyResult {
	return PolicyResult{Action: PolicyDeny, Reason: reason}
}

// Evaluate applies the mode's shortcuts in front of rule evaluation.
// plansDir may start with "~/".
func Evaluate(mode Mode, toolName string, toolInput map[string]any, plansDir string) PolicyResult {
	name := rule.StripACPPrefix(toolName)

	switch mode {
	case ModeBypassPermissions, ModeAcceptEdits:
		return policyAllow(fmt.Sprintf("Allowed in %s mode", mode))

	case ModeDefault:
		if ReadOnlyTools[name] {
			return policyAllow("Read-only tool allowed in default mode")
		}
		if name == "Bash" {
			return evaluateBash(toolInput)
		}
		return policyContinue()

	case ModePlan:
		if ReadOnlyTools[name] {
			return policyAllow("Read-only tool allowed in plan mode")
		}
		if name == "Bash" {
			return policyDeny(fmt.Sprintf("Tool %s is blocked in plan mode", name))
		}
		if PlanWriteTools[name] {
			if target, ok := planTarget(toolInput); ok && isUnderPlansDir(target, plansDir) {
				return policyAllow("Writing to the plans directory is allowed in plan mode")
			}
			return policyDeny(fmt.Sprintf("Tool %s is blocked in plan mode outside the plans directory", name))
		}
		return policyContinue()
	}

	return policyContinue()
}

func evaluateBash(toolInput map[string]any) PolicyResult {
	command, ok := toolInput["command"].(string)
	if !ok {
		return policyContinue()
	}
	if IsSafeCommand(command) {
		return policyAllow("Known-safe command allowed in default mode")
	}
	result := policyContinue()
	result.Dangerous, result.DangerReason = IsDangerousCommand(command)
	return result
}

func planTarget(toolInput map[string]any) (string, bool) {
	for _, key := range []string{"file_path", "notebook_path"} {
		if p, ok := toolInput[key].(string); ok && p != "" {
			return p, true
		}
	}
	return "", false
}

// HomePlansDir is the plans directory under the home configuration
// directory. Plan mode accepts it in addition to the configured plans
// directory, which differs when CLAUDE_CONFIG_DIR is set.
const HomePlansDir = "~/.claude/plans"

func isUnderPlansDir(path, plansDir string) bool {
	target := rule.NormalizePath(path, "")
	if !filepath.IsAbs(target) {
		return false
	}
	for _, dir := range []string{plansDir, HomePlansDir} {
		if dir == "" {
			continue
		}
		dir = rule.NormalizePath(dir, "")
		if filepath.IsAbs(dir) && rule.IsWithinDir(target, dir) {
			return true
		}
	}
	return false
}
