// Package main provides the entry point for the toolguard CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/toolguard/cmd/toolguard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
