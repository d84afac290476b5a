package commands

import (
	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/cmd/ecosight/internal/config"
	"github.com/ecosight/ecosight/pkg/cli"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
	Long: `Inspect the effective configuration or write a starter file.

Examples:
  ecosight config show
  ecosight config show -o json
  ecosight config init
  ecosight config init --path ./ecosight.yaml --force`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (credentials masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return output(cmd, cfg.Redacted())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		modelDir := ""
		if path == "" {
			paths, err := cli.NewPaths()
			if err != nil {
				return err
			}
			if err := paths.EnsureModelDir(); err != nil {
				return err
			}
			path = paths.ConfigFile()
			modelDir = paths.ModelDir()
		}
		if err := config.Default().Write(path, configInitForce); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "wrote %s", path)
		if modelDir != "" {
			cli.PrintInfo(cmd.OutOrStdout(), "model artifacts can be kept in %s", modelDir)
		}
		cli.PrintInfo(cmd.OutOrStdout(), "set models.extractor_url and models.classifier_weights before running 'ecosight serve'")
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "file to write (default ~/.ecosight/config.yaml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
