package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/toolguard/internal/config"
	"github.com/opencode-ai/toolguard/internal/permission"
	"github.com/opencode-ai/toolguard/internal/rule"
)

var debugOutput string

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
	Long:  `Debug utilities for troubleshooting settings files and rules.`,
}

var debugSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show merged settings",
	Args:  cobra.NoArgs,
	RunE:  runDebugSettings,
}

var debugPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show settings paths",
	Args:  cobra.NoArgs,
	RunE:  runDebugPaths,
}

var debugRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show parsed permission rules",
	Args:  cobra.NoArgs,
	RunE:  runDebugRules,
}

func init() {
	debugCmd.PersistentFlags().StringVarP(&debugOutput, "output", "o", "json", "Output format (json|yaml)")

	debugCmd.AddCommand(debugSettingsCmd)
	debugCmd.AddCommand(debugPathsCmd)
	debugCmd.AddCommand(debugRulesCmd)
}

func runDebugSettings(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	settings, sources := config.NewLoader(workDir).LoadWithSources()
	for _, src := range sources {
		if src.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", src.Err)
		}
	}
	return writeOutput(cmd.OutOrStdout(), debugOutput, settings)
}

func runDebugPaths(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}
	paths := config.GetPaths(workDir)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "toolguard Settings Paths:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  User:     %s%s\n", paths.User, existsMark(paths.User))
	fmt.Fprintf(out, "  Project:  %s%s\n", paths.Project, existsMark(paths.Project))
	fmt.Fprintf(out, "  Local:    %s%s\n", paths.ProjectLocal, existsMark(paths.ProjectLocal))
	fmt.Fprintf(out, "  Plans:    %s\n", paths.Plans)
	fmt.Fprintln(out)

	if dir := os.Getenv(config.EnvConfigDir); dir != "" {
		fmt.Fprintf(out, "User directory overridden by %s=%s\n", config.EnvConfigDir, dir)
	}
	return nil
}

func existsMark(path string) string {
	if _, err := os.Stat(path); err != nil {
		return " (missing)"
	}
	return ""
}

type ruleInfo struct {
	Kind     string `json:"kind"`
	Raw      string `json:"raw"`
	Tool     string `json:"tool"`
	Argument string `json:"argument,omitempty"`
	Wildcard bool   `json:"wildcard,omitempty"`
	Glob     bool   `json:"glob,omitempty"`
}

type rulesReport struct {
	Mode  permission.Mode `json:"mode"`
	Cwd   string          `json:"cwd"`
	Rules []ruleInfo      `json:"rules"`
}

func runDebugRules(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	shared := config.NewSharedSettings(workDir, nil)
	checker := shared.Checker()
	allow, deny, ask := checker.Rules()

	report := rulesReport{
		Mode:  permission.ModeFromSettings(shared.Settings()),
		Cwd:   checker.Cwd(),
		Rules: []ruleInfo{},
	}
	for _, group := range []struct {
		kind  string
		rules []rule.Rule
	}{
		{"deny", deny},
		{"allow", allow},
		{"ask", ask},
	} {
		for _, r := range group.rules {
			report.Rules = append(report.Rules, ruleInfo{
				Kind:     group.kind,
				Raw:      r.Raw,
				Tool:     r.ToolName,
				Argument: r.Argument,
				Wildcard: r.IsWildcard,
				Glob:     r.Compiled(),
			})
		}
	}
	return writeOutput(cmd.OutOrStdout(), debugOutput, report)
}
