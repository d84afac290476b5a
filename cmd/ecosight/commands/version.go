package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/cmd/ecosight/internal/build"
	"github.com/ecosight/ecosight/pkg/cli"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if f := cmd.Flag("format"); f != nil && f.Changed {
			info := build.Get()
			if formatOutput == string(cli.FormatTable) {
				return output(cmd, cli.KV{
					{"version", info.Version},
					{"commit", info.Commit},
					{"date", info.Date},
					{"go", info.Go},
					{"platform", info.OS + "/" + info.Arch},
				})
			}
			return output(cmd, info)
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "  go:     %s\n", build.Get().Go)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
