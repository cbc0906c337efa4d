// Command docmap compiles document model declarations into MongoDB
// aggregation pipelines and collection validators.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/docmap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own errors; only cobra's argument and flag
		// errors still need reporting.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
