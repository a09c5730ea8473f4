package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/toolguard/internal/config"
	"github.com/opencode-ai/toolguard/internal/event"
	"github.com/opencode-ai/toolguard/internal/hook"
	"github.com/opencode-ai/toolguard/internal/permission"
)

var (
	checkMode      string
	checkToolUseID string
	checkSessionID string
	checkOutput    string
)

var checkCmd = &cobra.Command{
	Use:   "check <tool> [json-input]",
	Short: "Decide one tool call",
	Long: `Decide one tool call against the current settings and print the outcome.

The tool input is a JSON object. Pass "-" to read it from stdin.`,
	Example: `  toolguard check Bash '{"command": "npm run build"}'
  toolguard check Write '{"file_path": "src/main.go"}' --mode plan --output yaml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkMode, "mode", "", "Permission mode (defaults to the settings' default mode)")
	checkCmd.Flags().StringVar(&checkToolUseID, "tool-use-id", "", "Tool call id to correlate or notify")
	checkCmd.Flags().StringVar(&checkSessionID, "session", "cli", "Session id")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "json", "Output format (json|yaml)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	toolInput, err := readToolInput(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}

	bus := event.NewBus()
	defer bus.Close()

	shared := config.NewSharedSettings(workDir, bus)
	mode := permission.ModeFromSettings(shared.Settings())
	if checkMode != "" {
		if mode, err = permission.ParseMode(checkMode); err != nil {
			return err
		}
	}

	orchestrator := hook.New(hook.Options{
		Settings: shared,
		Mode:     permission.NewSharedMode(mode, bus),
		Notifier: hook.NewEventNotifier(bus),
		Bus:      bus,
	})

	out := orchestrator.PreToolUse(cmd.Context(), hook.Input{
		Event:     hook.EventPreToolUse,
		SessionID: checkSessionID,
		ToolName:  args[0],
		ToolInput: toolInput,
		ToolUseID: checkToolUseID,
		Cwd:       workDir,
	})
	orchestrator.Wait()

	return writeOutput(cmd.OutOrStdout(), checkOutput, out)
}

// readToolInput returns the JSON object given as argument, read from stdin
// for "-", or an empty object.
func readToolInput(stdin io.Reader, args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return json.RawMessage(`{}`), nil
	}

	raw := args[0]
	if raw == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read tool input: %w", err)
		}
		raw = string(data)
	}

	raw = strings.TrimSpace(raw)
	if !json.Valid([]byte(raw)) || !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("tool input must be a JSON object")
	}
	return json.RawMessage(raw), nil
}

