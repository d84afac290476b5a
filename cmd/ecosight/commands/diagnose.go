package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/pkg/classifier"
	"github.com/ecosight/ecosight/pkg/cli"
	"github.com/ecosight/ecosight/pkg/threat"
)

var diagnoseSeed uint64

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check a classifier head for degenerate output",
	Long: `Feed synthetic embeddings (zeros, ones, small and large random vectors)
to the configured classifier and report the score distribution of each.

A classifier that answers every probe with nearly the same scores is
flagged as degenerate: it is usually untrained or was exported without
its weights.`,
	Args: cobra.NoArgs,
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().Uint64Var(&diagnoseSeed, "seed", 42, "seed for the random probes")
	rootCmd.AddCommand(diagnoseCmd)
}

// diagnosisReport pairs a diagnosis with the labels needed to read it.
type diagnosisReport struct {
	Classifier classifier.Info       `json:"classifier" yaml:"classifier"`
	Labels     []string              `json:"labels" yaml:"labels"`
	Diagnosis  *classifier.Diagnosis `json:"diagnosis" yaml:"diagnosis"`
}

func (diagnosisReport) Header() []string { return []string{"PROBE", "TOP CLASS", "SUM", "SCORES"} }

func (r diagnosisReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Diagnosis.Probes))
	for _, p := range r.Diagnosis.Probes {
		top := fmt.Sprint(p.Argmax)
		if p.Argmax >= 0 && p.Argmax < len(r.Labels) {
			top = r.Labels[p.Argmax]
		}
		scores := make([]string, len(p.Scores))
		for i, s := range p.Scores {
			scores[i] = fmt.Sprintf("%.4f", s)
		}
		rows = append(rows, []string{p.Name, top, fmt.Sprintf("%.4f", p.Sum), strings.Join(scores, " ")})
	}
	return rows
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Models.ClassifierWeights == "" && cfg.Models.ClassifierURL == "" {
		return threat.ConfigError("classifier", errors.New("set models.classifier_weights or models.classifier_url"))
	}
	labels, err := loadLabels(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	c, err := loadClassifier(cmd.Context(), cfg, labels)
	if err != nil {
		return err
	}
	if err := labels.CheckWidth(c.OutputDim()); err != nil {
		return err
	}

	d, err := classifier.Diagnose(cmd.Context(), c, diagnoseSeed)
	if err != nil {
		return err
	}
	if err := output(cmd, diagnosisReport{Classifier: c.Describe(), Labels: labels.Names(), Diagnosis: d}); err != nil {
		return err
	}

	if d.Degenerate {
		cli.PrintWarning(cmd.ErrOrStderr(), "classifier output barely changes across inputs (spread %.2e); it may be untrained", d.Spread)
	} else {
		cli.PrintSuccess(cmd.ErrOrStderr(), "classifier responds to its input (spread %.4f)", d.Spread)
	}
	return nil
}
