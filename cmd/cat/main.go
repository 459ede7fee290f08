// cat is the CLI for orchestrating per-issue git worktrees, locks, and
// lifecycle hooks.
package main

import (
	"os"

	"github.com/cat-dev/cat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
