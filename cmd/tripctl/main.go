// Command tripctl evaluates trips, alternatives and routes from the command
// line against the same engine the MCP server uses.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
