package rule

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ACPPrefix is stripped from tool names before matching.
const ACPPrefix = "mcp__acp__"

// WildcardSuffix marks a prefix rule.
const WildcardSuffix = ":*"

var rulePattern = regexp.MustCompile(`^(\w+)(?:\((.+)\))?$`)

// Rule is a parsed permission rule.
type Rule struct {
	Raw         string // Rule text as written in settings
	ToolName    string // Tool or group name
	Argument    string // Argument pattern, with any ":*" suffix removed
	HasArgument bool
	IsWildcard  bool

	// pattern is the normalized, validated glob for file tools.
	pattern string
}

// Parse parses a rule string. Strings that do not fit the rule grammar become
// a bare tool name.
func Parse(raw string) Rule {
	m := rulePattern.FindStringSubmatch(raw)
	if m == nil {
		return Rule{Raw: raw, ToolName: raw}
	}

	r := Rule{Raw: raw, ToolName: m[1]}
	if m[2] != "" {
		r.HasArgument = true
		r.Argument = m[2]
		if strings.HasSuffix(r.Argument, WildcardSuffix) {
			r.IsWildcard = true
			r.Argument = strings.TrimSuffix(r.Argument, WildcardSuffix)
		}
	}
	return r
}

// IsWellFormed reports whether raw fits the rule grammar.
func IsWellFormed(raw string) bool {
	return rulePattern.MatchString(raw)
}

// ParseWithGlob parses a rule and, for file tools with a non-wildcard
// argument, normalizes and validates the glob pattern once.
func ParseWithGlob(raw, cwd string) Rule {
	r := Parse(raw)
	if r.HasArgument && !r.IsWildcard && IsFileTool(r.ToolName) {
		normalized := NormalizePath(r.Argument, cwd)
		if doublestar.ValidatePattern(normalized) {
			r.pattern = normalized
		}
	}
	return r
}

// String returns the rule as written.
func (r Rule) String() string {
	return r.Raw
}

// Compiled reports whether the rule carries a pre-validated glob.
func (r Rule) Compiled() bool {
	return r.pattern != ""
}

// Matches reports whether the rule applies to a tool invocation.
func (r Rule) Matches(toolName string, toolInput map[string]any, cwd string) bool {
	name := StripACPPrefix(toolName)
	if !r.matchesToolName(name) {
		return false
	}

	if !r.HasArgument {
		return true
	}

	actual, ok := ExtractArgument(name, toolInput)
	if !ok {
		return false
	}

	switch {
	case IsBashTool(name):
		return r.matchesCommand(actual)
	case IsFileTool(name):
		return r.matchesPath(actual, cwd)
	default:
		return r.Argument == actual
	}
}

func (r Rule) matchesToolName(name string) bool {
	if r.ToolName == name {
		return true
	}
	if friendly, ok := FriendlyName(name); ok && r.ToolName == friendly {
		return true
	}
	return InGroup(r.ToolName, name)
}

func (r Rule) matchesCommand(command string) bool {
	if !r.IsWildcard {
		return r.Argument == command
	}
	remainder, ok := strings.CutPrefix(command, r.Argument)
	if !ok {
		return false
	}
	return !ContainsShellOperator(remainder)
}

func (r Rule) matchesPath(path, cwd string) bool {
	target := NormalizePath(path, cwd)

	if r.pattern != "" {
		return globMatch(r.pattern, target)
	}

	pattern := NormalizePath(r.Argument, cwd)
	if doublestar.ValidatePattern(pattern) {
		return globMatch(pattern, target)
	}
	return pattern == target
}

// flatSeparator stands in for "/" so that doublestar treats it as an
// ordinary character. Paths never contain NUL.
const flatSeparator = "\x00"

// globMatch matches pattern against target where "*", "?" and character
// classes may also match "/". A "**" component still matches zero
// directories, so "a/**/b" matches "a/b".
func globMatch(pattern, target string) bool {
	if matched, err := doublestar.Match(pattern, target); err == nil && matched {
		return true
	}
	matched, err := doublestar.Match(
		strings.ReplaceAll(pattern, "/", flatSeparator),
		strings.ReplaceAll(target, "/", flatSeparator),
	)
	return err == nil && matched
}

// StripACPPrefix removes the ACP tool prefix, if present.
func StripACPPrefix(toolName string) string {
	return strings.TrimPrefix(toolName, ACPPrefix)
}
