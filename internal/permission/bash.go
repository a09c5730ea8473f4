package permission

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// BashCommand represents a parsed command with its arguments.
type BashCommand struct {
	Name       string   // Command name (e.g., "rm", "git")
	Args       []string // Command arguments
	Subcommand string   // First non-flag argument (e.g., "status" in "git status")
	Piped      bool     // Reads the output of a pipe
}

func newParser() *syntax.Parser {
	return syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)
}

func parseFile(command string) (*syntax.File, error) {
	file, err := newParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	return file, nil
}

// ParseBashCommand parses a bash command string into every simple command
// it contains, including those nested in pipelines and substitutions.
func ParseBashCommand(command string) ([]BashCommand, error) {
	file, err := parseFile(command)
	if err != nil {
		return nil, err
	}
	return commandsIn(file), nil
}

func commandsIn(file *syntax.File) []BashCommand {
	var commands []BashCommand
	piped := make(map[*syntax.CallExpr]bool)

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.BinaryCmd:
			if n.Op == syntax.Pipe || n.Op == syntax.PipeAll {
				if call, ok := n.Y.Cmd.(*syntax.CallExpr); ok {
					piped[call] = true
				}
			}
		case *syntax.CallExpr:
			if cmd := extractCommand(n); cmd != nil {
				cmd.Piped = piped[n]
				commands = append(commands, *cmd)
			}
		}
		return true
	})
	return commands
}

func extractCommand(call *syntax.CallExpr) *BashCommand {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &BashCommand{Name: filepath.Base(wordToString(call.Args[0]))}
	if cmd.Name == "" || cmd.Name == "." {
		return nil
	}

	for _, arg := range call.Args[1:] {
		argStr := wordToString(arg)
		cmd.Args = append(cmd.Args, argStr)

		if cmd.Subcommand == "" && !strings.HasPrefix(argStr, "-") {
			cmd.Subcommand = argStr
		}
	}

	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// literalWord returns the word's value when it has no expansions.
func literalWord(word *syntax.Word) (string, bool) {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", false
			}
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				lit, ok := qp.(*syntax.Lit)
				if !ok {
					return "", false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return sb.String(), true
}

// SafeCommands are read-only inspection commands auto-allowed in default mode.
var SafeCommands = map[string]bool{
	"ls":       true,
	"pwd":      true,
	"cat":      true,
	"head":     true,
	"tail":     true,
	"wc":       true,
	"echo":     true,
	"which":    true,
	"whoami":   true,
	"date":     true,
	"tree":     true,
	"file":     true,
	"stat":     true,
	"du":       true,
	"df":       true,
	"env":      true,
	"printenv": true,
	"uname":    true,
	"rg":       true,
	"grep":     true,
	"find":     true,
	"git":      true,
}

// SafeGitSubcommands are the git subcommands that only read repository state.
var SafeGitSubcommands = map[string]bool{
	"status":    true,
	"log":       true,
	"diff":      true,
	"show":      true,
	"branch":    true,
	"remote":    true,
	"rev-parse": true,
	"blame":     true,
}

// DangerousCommands modify files, escalate privileges, stop processes or
// reach the network.
var DangerousCommands = map[string]bool{
	"rm":       true,
	"mv":       true,
	"cp":       true,
	"dd":       true,
	"mkdir":    true,
	"rmdir":    true,
	"touch":    true,
	"chmod":    true,
	"chown":    true,
	"sudo":     true,
	"su":       true,
	"mkfs":     true,
	"kill":     true,
	"killall":  true,
	"shutdown": true,
	"reboot":   true,
	"curl":     true,
	"wget":     true,
}

// DangerousGitSubcommands rewrite history, discard work or publish it.
var DangerousGitSubcommands = map[string]bool{
	"push":  true,
	"reset": true,
	"clean": true,
}

// ShellInterpreters run whatever is piped into them.
var ShellInterpreters = map[string]bool{
	"sh":   true,
	"bash": true,
	"zsh":  true,
	"dash": true,
	"ksh":  true,
	"fish": true,
}

var (
	findUnsafeFlags   = []string{"-exec", "-execdir", "-ok", "-okdir", "-delete", "-fprint", "-fprint0", "-fprintf", "-fls"}
	gitBranchReadOnly = []string{"-a", "--all", "-r", "--remotes", "-v", "-vv", "--verbose", "--list", "--show-current", "--merged", "--no-merged", "--no-color"}
	gitRemoteReadOnly = []string{"-v", "--verbose", "show", "get-url"}
	dateReadOnly      = []string{"-u", "--utc", "--universal", "-R", "--rfc-email"}
	fileUnsafeFlags   = []string{"-C", "--compile"}
)

// IsSafeCommand reports whether command is a single read-only command with
// no operators, redirections or expansions.
func IsSafeCommand(command string) bool {
	file, err := parseFile(command)
	if err != nil || len(file.Stmts) != 1 {
		return false
	}

	stmt := file.Stmts[0]
	if stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 {
		return false
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Assigns) > 0 || len(call.Args) == 0 {
		return false
	}

	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		lit, ok := literalWord(w)
		if !ok {
			return false
		}
		words = append(words, lit)
	}

	name, args := words[0], words[1:]
	if !SafeCommands[name] {
		return false
	}

	switch name {
	case "find":
		return !containsAny(args, findUnsafeFlags)
	case "env":
		return len(args) == 0
	case "date":
		for _, a := range args {
			if !strings.HasPrefix(a, "+") && !slices.Contains(dateReadOnly, a) {
				return false
			}
		}
	case "tree":
		return !treeWritesOutput(args)
	case "file":
		return !containsAny(args, fileUnsafeFlags)
	case "rg":
		for _, a := range args {
			if a == "--pre" || strings.HasPrefix(a, "--pre=") {
				return false
			}
		}
	case "git":
		return isSafeGit(args)
	}
	return true
}

func isSafeGit(args []string) bool {
	// Global options such as -C or -c change what git runs.
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return false
	}
	sub, rest := args[0], args[1:]
	if !SafeGitSubcommands[sub] {
		return false
	}

	switch sub {
	case "branch":
		// Any positional argument names a branch to create.
		for _, a := range rest {
			if !slices.Contains(gitBranchReadOnly, a) {
				return false
			}
		}
	case "remote":
		for _, a := range rest {
			if !slices.Contains(gitRemoteReadOnly, a) {
				return false
			}
		}
	case "diff", "log", "show":
		for _, a := range rest {
			if a == "--output" || strings.HasPrefix(a, "--output=") || strings.HasPrefix(a, "--ext-diff") {
				return false
			}
		}
	}
	return true
}

// treeWritesOutput reports whether tree is asked to write a file with -o,
// or HTML pages per directory with -R.
func treeWritesOutput(args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "--") || !strings.HasPrefix(a, "-") {
			continue
		}
		if strings.ContainsAny(a[1:], "oR") {
			return true
		}
	}
	return false
}

func containsAny(args, flags []string) bool {
	for _, a := range args {
		if slices.Contains(flags, a) {
			return true
		}
	}
	return false
}

// IsDangerousCommand reports whether command may modify the system. The
// reason names the first finding. Commands that cannot be parsed are treated
// as dangerous.
func IsDangerousCommand(command string) (bool, string) {
	commands, err := ParseBashCommand(command)
	if err != nil {
		return true, "command could not be parsed"
	}

	for _, cmd := range commands {
		switch {
		case DangerousCommands[cmd.Name]:
			return true, fmt.Sprintf("runs %s", cmd.Name)
		case cmd.Name == "git" && DangerousGitSubcommands[cmd.Subcommand]:
			return true, fmt.Sprintf("runs git %s", cmd.Subcommand)
		case cmd.Piped && ShellInterpreters[cmd.Name]:
			return true, fmt.Sprintf("pipes into %s", cmd.Name)
		}
	}
	return false, ""
}
