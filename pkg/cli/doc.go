// Package cli provides output rendering and filesystem conventions for the
// ecosight command-line tool.
//
// This package includes:
//   - Output formatting (YAML, JSON, table)
//   - Priority-aware terminal styles
//   - Human readable numbers (bytes, durations, percentages)
//   - The ~/.ecosight directory layout
//
// Example usage:
//
//	cli.Output(detection, cli.OutputOptions{
//	    Format: cli.FormatTable,
//	    File:   outputPath,
//	})
package cli
