// Package main is the entry point for the ecosight CLI.
//
// Usage:
//
//	ecosight [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the detection API (HTTP + WebSocket stream)
//	predict    - Classify local audio files
//	classes    - List threat classes and priorities
//	diagnose   - Check a classifier head for degenerate output
//	probe      - Exercise the endpoints of a running server
//	config     - Show or initialize configuration
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/ecosight/ecosight/cmd/ecosight/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
