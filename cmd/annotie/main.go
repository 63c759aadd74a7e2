// Command annotie stores, edits and projects entity and tie annotations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/annotie/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "annotie:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
