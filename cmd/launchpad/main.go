// Package main is the entry point for the launchpad CLI.
package main

import (
	"os"

	"launchpad/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
