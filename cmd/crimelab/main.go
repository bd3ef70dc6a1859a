// Command crimelab runs the Imaginary Crime Lab case resolution engine.
//
// Usage:
//
//	crimelab serve --config crimelab.yaml
//	crimelab seed data/catalog.cue
//	crimelab order order-1001 --evidence fingerprint,ledger-page
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bedwards/imaginary-crime-lab/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
