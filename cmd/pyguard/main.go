package main

import (
	"fmt"
	"os"

	"github.com/altantutar/pyguard/cmd/pyguard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		code := commands.ExitCode(err)
		if code != 1 {
			fmt.Fprintf(os.Stderr, "pyguard: %v\n", err)
		}
		os.Exit(code)
	}
}
