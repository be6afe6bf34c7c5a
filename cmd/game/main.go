// Command game plays the stories under data/stories. It is the same program
// as the storyloop binary at the module root, kept for `go run ./cmd/game`.
package main

import (
	"fmt"
	"os"

	"github.com/tatianab/storyloop/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if len(os.Args) == 1 {
		cmd.SetArgs([]string{"play"})
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
