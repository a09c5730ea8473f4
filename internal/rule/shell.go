package rule

import "strings"

// ShellOperators are the sequences that chain, pipe or substitute commands.
var ShellOperators = []string{"&&", "||", ";", "|", "$(", "`", "\n"}

// ContainsShellOperator reports whether s contains any shell operator.
func ContainsShellOperator(s string) bool {
	for _, op := range ShellOperators {
		if strings.Contains(s, op) {
			return true
		}
	}
	return false
}
