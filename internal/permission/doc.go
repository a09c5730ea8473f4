// Package permission decides whether a tool invocation is allowed, denied or
// needs the user's confirmation.
//
// # Overview
//
// Two layers produce a decision. The mode policy runs first and may settle
// the invocation on its own; the rule checker runs only when the policy falls
// through.
//
//   - Allow: the tool runs without prompting
//   - Deny: the tool is rejected with a reason
//   - Ask: no rule matched, or an ask rule matched; the user is prompted
//
// # Modes
//
// A session is always in one of the modes below. SharedMode holds the current
// mode for concurrent readers.
//
//   - default: read-only tools and known-safe shell commands are allowed
//   - acceptEdits: every tool is allowed
//   - plan: read-only tools are allowed, Bash is denied, and edits are
//     allowed only inside the plans directory
//   - dontAsk: no shortcuts, rules decide
//   - bypassPermissions: every tool is allowed
//
//	result := Evaluate(ModePlan, "Write", map[string]any{"file_path": "/tmp/x"}, plansDir)
//	// result.Action == PolicyDeny
//
// # Checker
//
// A Checker is built from one settings snapshot. Deny rules are consulted
// first, then allow rules, then ask rules:
//
//	checker := NewChecker(settings, cwd)
//	res := checker.Check("Bash", map[string]any{"command": "npm run build"})
//	if res.Decision == DecisionDeny {
//		fmt.Println("denied by", res.Rule)
//	}
//
// # Bash Commands
//
// IsSafeCommand and IsDangerousCommand parse commands with mvdan.cc/sh. The
// dangerous heuristic is advisory: it flags a PolicyResult but never denies.
package permission
