package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/toolguard/internal/config"
	"github.com/opencode-ai/toolguard/internal/permission"
	"github.com/opencode-ai/toolguard/internal/rule"
	"github.com/opencode-ai/toolguard/pkg/types"
)

// maxSuggestDistance bounds how far a misspelt tool name may be from its
// suggestion.
const maxSuggestDistance = 2

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check settings files for rule mistakes",
	Long: `Parse every permission rule of the user and project settings files and
report rules that can never match as intended.`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

type lintIssue struct {
	Path    string
	Kind    string
	Rule    string
	Message string
}

func (i lintIssue) String() string {
	if i.Rule == "" {
		return fmt.Sprintf("%s: %s", i.Path, i.Message)
	}
	return fmt.Sprintf("%s: %s %q: %s", i.Path, i.Kind, i.Rule, i.Message)
}

func runLint(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	var issues []lintIssue
	for _, path := range config.GetPaths(workDir).Sources() {
		settings, err := config.LoadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			issues = append(issues, lintIssue{Path: path, Message: err.Error()})
			continue
		}
		issues = append(issues, lintSettings(path, settings, workDir)...)
	}

	out := cmd.OutOrStdout()
	for _, issue := range issues {
		fmt.Fprintln(out, issue)
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d problem(s) found", len(issues))
	}
	fmt.Fprintln(out, "No problems found")
	return nil
}

func lintSettings(path string, settings *types.Settings, cwd string) []lintIssue {
	var issues []lintIssue
	for _, group := range []struct {
		kind  string
		rules []string
	}{
		{"allow", settings.AllowRules()},
		{"deny", settings.DenyRules()},
		{"ask", settings.AskRules()},
	} {
		for _, raw := range group.rules {
			for _, msg := range lintRule(raw, cwd) {
				issues = append(issues, lintIssue{Path: path, Kind: group.kind, Rule: raw, Message: msg})
			}
		}
	}

	if mode := settings.DefaultMode(); mode != "" {
		if _, err := permission.ParseMode(mode); err != nil {
			issues = append(issues, lintIssue{Path: path, Message: err.Error()})
		}
	}
	return issues
}

// lintRule returns the problems of a single rule.
func lintRule(raw, cwd string) []string {
	if !rule.IsWellFormed(raw) {
		return []string{"not of the form Tool or Tool(argument)"}
	}

	var problems []string
	r := rule.ParseWithGlob(raw, cwd)

	if !rule.IsKnownTool(r.ToolName) && !strings.HasPrefix(r.ToolName, "mcp__") {
		msg := fmt.Sprintf("unknown tool %q", r.ToolName)
		if suggestion, ok := suggestTool(r.ToolName); ok {
			msg += fmt.Sprintf(", did you mean %q?", suggestion)
		}
		problems = append(problems, msg)
	}

	if r.IsWildcard && !rule.IsBashTool(r.ToolName) {
		problems = append(problems, fmt.Sprintf("the %s suffix only applies to Bash rules", rule.WildcardSuffix))
	}

	if r.HasArgument && !r.IsWildcard && rule.IsFileTool(r.ToolName) && !r.Compiled() {
		problems = append(problems, "invalid glob pattern, compared literally")
	}

	return problems
}

// suggestTool returns the known tool name closest to name.
func suggestTool(name string) (string, bool) {
	best, bestDist := "", maxSuggestDistance+1
	lower := strings.ToLower(name)
	for _, known := range rule.KnownTools {
		dist := levenshtein.ComputeDistance(lower, strings.ToLower(known))
		if dist < bestDist {
			best, bestDist = known, dist
		}
	}
	return best, best != ""
}
