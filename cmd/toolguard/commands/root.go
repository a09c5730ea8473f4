// Package commands provides the CLI commands for toolguard.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/toolguard/internal/config"
	"github.com/opencode-ai/toolguard/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs  bool
	logLevel   string
	projectDir string
	debounce   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "toolguard",
	Short: "toolguard - permission checks for agent tool calls",
	Long: `toolguard decides whether an AI coding agent may run a tool call,
based on the permission mode and the allow, deny and ask rules of the
user and project settings files.

Run 'toolguard check Bash '{"command":"ls"}'' to decide one call, or
'toolguard watch' to follow settings changes.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", "", "Project directory (defaults to the current directory)")
	rootCmd.PersistentFlags().DurationVar(&debounce, "debounce", config.DefaultDebounce, "Delay before a settings change is reloaded")

	rootCmd.SetVersionTemplate(fmt.Sprintf("toolguard %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(lintCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

func initLogging(cmd *cobra.Command, args []string) error {
	cfg := logging.FromEnv()
	if cmd.Flags().Changed("log-level") {
		cfg.Level = logging.ParseLevel(logLevel)
	}
	if printLogs {
		cfg.Pretty = true
	} else {
		cfg.Output = io.Discard
	}
	logging.Init(cfg)
	return nil
}

// writeOutput prints v as indented JSON or as YAML. YAML is produced from the
// JSON encoding so both formats share field names and key order.
func writeOutput(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	switch format {
	case "", "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("convert to yaml: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (json|yaml)", format)
	}
}

// blockStyle drops the flow and quoting styles the JSON input implies.
// Strings that would read as another type stay quoted.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}
