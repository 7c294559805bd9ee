// Package main provides the entry point for the aura CLI.
package main

import (
	"os"

	"github.com/johnazariah/aura-sub015/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
