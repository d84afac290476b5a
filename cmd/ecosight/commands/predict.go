package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/pkg/cli"
	"github.com/ecosight/ecosight/pkg/pipeline"
	"github.com/ecosight/ecosight/pkg/threat"
)

var (
	predictLatitude  float64
	predictLongitude float64
)

var predictCmd = &cobra.Command{
	Use:   "predict FILE...",
	Short: "Classify local audio files",
	Long: `Run the detection pipeline on local audio files (WAV, FLAC, MP3).

Files are processed concurrently; a file that fails is reported with its
error and does not affect the others.

Examples:
  ecosight predict clip.wav
  ecosight predict -o table --latitude -1.29 --longitude 36.82 clips/*.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().Float64Var(&predictLatitude, "latitude", 0, "sensor latitude (default from config)")
	predictCmd.Flags().Float64Var(&predictLongitude, "longitude", 0, "sensor longitude (default from config)")
	rootCmd.AddCommand(predictCmd)
}

// predictionRow is the outcome for one file.
type predictionRow struct {
	File      string            `json:"file" yaml:"file"`
	Bytes     int               `json:"bytes" yaml:"bytes"`
	Detection *threat.Detection `json:"detection,omitempty" yaml:"detection,omitempty"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type predictionRows []predictionRow

func (predictionRows) Header() []string {
	return []string{"FILE", "SIZE", "CLASS", "CONFIDENCE", "PRIORITY", "STATUS"}
}

func (rs predictionRows) Rows() [][]string {
	rows := make([][]string, len(rs))
	for i, r := range rs {
		if r.Detection == nil {
			rows[i] = []string{r.File, cli.FormatBytes(int64(r.Bytes)), "-", "-", "-", cli.DefaultStyles.Fail.Render(r.Error)}
			continue
		}
		d := r.Detection
		rows[i] = []string{
			r.File,
			cli.FormatBytes(int64(r.Bytes)),
			d.PredictedClass,
			cli.FormatPercent(d.Confidence),
			cli.DefaultStyles.Priority(string(d.Priority)),
			string(d.Status),
		}
	}
	return rows
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("latitude") {
		cfg.Location.Latitude = predictLatitude
	}
	if cmd.Flags().Changed("longitude") {
		cfg.Location.Longitude = predictLongitude
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p, loader, err := newPipeline(cfg, nil)
	if err != nil {
		return err
	}
	if _, err := loader.Load(cmd.Context()); err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	items := make([]pipeline.Item, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		items[i] = pipeline.Item{Filename: filepath.Base(path), Audio: data}
	}

	results := p.RunBatch(cmd.Context(), items)
	rows := make(predictionRows, len(results))
	failed := 0
	for i, r := range results {
		rows[i] = predictionRow{File: args[i], Bytes: len(items[i].Audio), Detection: r.Detection}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
			failed++
		}
	}
	if err := output(cmd, rows); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
