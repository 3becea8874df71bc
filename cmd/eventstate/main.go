// Command eventstate replays a process orchestration event log into its
// state store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/eventstate/internal/cli"
)

var version = "dev"

func main() {
	root := cli.NewRootCommand()
	root.Version = version

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "eventstate: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
