// Package main is the entry point for the hookline plugin host.
package main

import (
	"fmt"
	"os"

	"github.com/quantframe/hookline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
