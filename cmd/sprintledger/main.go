// Command sprintledger serves and maintains an agile tracker store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/sprintledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
