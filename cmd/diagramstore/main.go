// This is the main entry point for the diagramstore CLI.
// Build with: go build -o bin/diagramstore ./cmd/diagramstore
// Usage: diagramstore <command> [options]
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
