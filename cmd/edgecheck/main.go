// Package main is the entry point for the edgecheck conformance harness.
package main

import (
	"os"

	"github.com/AndreyAkinshin/edgecheck/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
