package main

import (
	"os"

	"github.com/majorcontext/ccs/cmd/ccs/cli"
	"github.com/majorcontext/ccs/internal/container"
)

func main() {
	if err := cli.Execute(); err != nil {
		// The agent's own exit status becomes ours.
		if code, ok := container.ExitCode(err); ok {
			os.Exit(code)
		}
		os.Exit(1)
	}
}
