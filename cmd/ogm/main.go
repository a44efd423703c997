// Command ogm validates mapping metadata, compiles queries to Cypher and
// saves objects into a property graph.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/ogm/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own errors; anything else came from cobra.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
