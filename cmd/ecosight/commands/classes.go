package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/pkg/cli"
	"github.com/ecosight/ecosight/pkg/threat"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List threat classes and priorities",
	Long: `List the label table: class index, name and alert priority.

The table comes from models.labels when configured, otherwise the
built-in table is shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		labels, err := loadLabels(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return output(cmd, labelRows(labels))
	},
}

func init() {
	rootCmd.AddCommand(classesCmd)
}

type labelRows threat.LabelTable

func (labelRows) Header() []string { return []string{"INDEX", "CLASS", "PRIORITY", "STATUS"} }

func (t labelRows) Rows() [][]string {
	rows := make([][]string, len(t.Classes))
	for i, c := range t.Classes {
		rows[i] = []string{
			strconv.Itoa(i),
			c.Name,
			cli.DefaultStyles.Priority(string(c.Priority)),
			string(threat.StatusFor(c.Priority)),
		}
	}
	return rows
}
