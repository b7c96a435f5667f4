/*
main.go - Application entry point

PURPOSE:
  Runs the videostore command line. `videostore serve` starts the HTTP API;
  the other subcommands act on the store directly.

CONFIGURATION:
  Environment variables (or a .env file) as read by config.Load, with
  --db, --driver, --log-level and --log-format overriding them.

SEE ALSO:
  - cli/root.go: Commands and flags
  - cli/serve.go: Server startup and graceful shutdown
*/
package main

import (
	"fmt"
	"os"

	"github.com/warp/videostore/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
