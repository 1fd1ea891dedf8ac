package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"phonelease/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(cli.GetExitCode(err))
	}
}
