package main

import (
	"context"
	"fmt"
	"os"

	"rehearsal/api/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand(cli.DefaultEnv())
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
