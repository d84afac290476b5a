package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/cmd/ecosight/internal/config"
	"github.com/ecosight/ecosight/pkg/cli"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	formatOutput string
	outputFile   string
)

var rootCmd = &cobra.Command{
	Use:   "ecosight",
	Short: "Acoustic threat detection for wildlife protection",
	Long: `ecosight - classify field audio into threat classes.

Audio clips are normalized to 16 kHz mono, embedded by a pretrained audio
model, classified by a small head and turned into prioritized detections.

Configuration is read from --config, or ~/.ecosight/config.yaml when it
exists, then from .env and ECOSIGHT_* environment variables.

Examples:
  # Write a starter config and edit the model locations
  ecosight config init

  # Run the API
  ecosight serve

  # Classify files without a server
  ecosight predict -o table clips/*.wav

  # Check a running deployment
  ecosight probe --url http://localhost:8000`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ecosight/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "format", "o", "yaml", "output format: yaml, json, table")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output", "", "write output to file instead of stdout")
}

// loadConfig resolves the config file, loads and validates it, and installs
// the configured slog handler as the default logger.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if paths, err := cli.NewPaths(); err == nil {
			if _, err := os.Stat(paths.ConfigFile()); err == nil {
				path = paths.ConfigFile()
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Log))
	slog.Debug("config loaded", "path", path)
	return cfg, nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	lvl, err := lc.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// output renders result with the global --format and --output flags.
func output(cmd *cobra.Command, result any) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	opts := cli.OutputOptions{Format: format, File: outputFile}
	if outputFile == "" {
		opts.Writer = cmd.OutOrStdout()
	}
	if err := cli.Output(result, opts); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}
