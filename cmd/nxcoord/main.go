// Command nxcoord arbitrates exactly-once task claims between build agents.
package main

import (
	"os"

	"github.com/roach88/nxcoord/internal/cli"
)

func main() {
	os.Exit(cli.Run(cli.NewRootCommand(), os.Stderr))
}
