// Package main is the entry point for the crmsync CLI binary.
package main

import (
	"os"

	"crmsync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
