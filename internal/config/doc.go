// Package config loads, shares and hot-reloads permission settings.
//
// # Settings Files
//
// Settings are read from three files, merged in this order so later files
// take precedence:
//
//  1. ~/.claude/settings.json (or $CLAUDE_CONFIG_DIR/settings.json)
//  2. <project>/.claude/settings.json
//  3. <project>/.claude/settings.local.json
//
// Files are parsed with tidwall/jsonc, so comments and trailing commas are
// accepted. A missing file is skipped silently. A file that cannot be parsed
// is logged and skipped; loading never fails.
//
// # Sharing
//
// SharedSettings holds the current snapshot and its permission checker:
//
//	shared := NewSharedSettings(projectDir, bus)
//	res := shared.Check("Bash", map[string]any{"command": "npm test"})
//
// # Hot Reload
//
// Watcher observes the settings directories with fsnotify and coalesces
// bursts of events with bep/debounce. StartAutoReload connects a Watcher to
// a SharedSettings:
//
//	reloader, err := StartAutoReload(ctx, projectDir, shared, DefaultDebounce)
//	if err != nil {
//		return err
//	}
//	defer reloader.Stop()
package config
