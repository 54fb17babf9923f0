// Command vellum builds, inspects and drives interactive documents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vellum/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
