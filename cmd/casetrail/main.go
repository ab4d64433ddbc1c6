// Command casetrail records case notes and reverts them to earlier points
// in time.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/casetrail/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "casetrail: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
