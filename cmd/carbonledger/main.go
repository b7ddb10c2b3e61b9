// Command carbonledger is the CLI entry point.
package main

import (
	"os"

	"github.com/rshade/carbonledger/internal/cli"
	"github.com/rshade/carbonledger/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps errors to the process exit code.
func run() int {
	root := cli.NewRootCmd(version.GetVersion())
	if err := root.Execute(); err != nil {
		// Cobra already printed the error.
		return 1
	}
	return 0
}
