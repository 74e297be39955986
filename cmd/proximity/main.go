// Package main provides the entry point for the proximity CLI.
package main

import (
	"github.com/colthorp/proximity-cli/internal/cli"
)

func main() {
	cli.Execute()
}
