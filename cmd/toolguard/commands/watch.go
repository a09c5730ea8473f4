package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/toolguard/internal/config"
	"github.com/opencode-ai/toolguard/internal/event"
	"github.com/opencode-ai/toolguard/internal/logging"
	"github.com/opencode-ai/toolguard/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow settings changes",
	Long: `Watch the user and project settings directories, reload on every change
and print how the permission rules changed.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(projectDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus()
	defer bus.Close()

	shared := config.NewSharedSettings(workDir, bus)
	updates, unsubscribe := shared.Subscribe()
	defer unsubscribe()

	reloader, err := config.StartAutoReload(ctx, workDir, shared, debounce)
	if err != nil {
		return err
	}
	defer reloader.Stop()

	unsubscribeChanged := bus.Subscribe(event.SettingsChanged, func(e event.Event) {
		if data, ok := e.Data.(event.SettingsChangedData); ok {
			logging.Debug().Strs("paths", data.Paths).Msg("settings changed")
		}
	})
	defer unsubscribeChanged()

	out := cmd.OutOrStdout()
	prev := shared.Settings()
	fmt.Fprintf(out, "Watching settings for %s (%d allow, %d deny, %d ask)\n",
		workDir, len(prev.AllowRules()), len(prev.DenyRules()), len(prev.AskRules()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "[%s] settings reloaded\n", time.Now().Format(time.TimeOnly))
			writeRuleDiff(out, rulesText(prev), rulesText(next))
			prev = next
		}
	}
}

// rulesText renders the permission rules one per line, prefixed by kind.
func rulesText(s *types.Settings) string {
	var b strings.Builder
	for _, kind := range []struct {
		name  string
		rules []string
	}{
		{"allow", s.AllowRules()},
		{"deny", s.DenyRules()},
		{"ask", s.AskRules()},
	} {
		for _, r := range kind.rules {
			fmt.Fprintf(&b, "%s %s\n", kind.name, r)
		}
	}
	if mode := s.DefaultMode(); mode != "" {
		fmt.Fprintf(&b, "defaultMode %s\n", mode)
	}
	return b.String()
}

// writeRuleDiff prints added and removed lines between before and after.
func writeRuleDiff(w io.Writer, before, after string) {
	if before == after {
		fmt.Fprintln(w, "  (no rule changes)")
		return
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Fprintf(w, "%s%s\n", prefix, line)
		}
	}
}
