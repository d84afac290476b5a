package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/pkg/audio/codec/wav"
	"github.com/ecosight/ecosight/pkg/cli"
)

// Probe clip: 3 s of a 440 Hz sine at half amplitude, 16 kHz mono.
const (
	probeRate      = 16000
	probeSeconds   = 3
	probeFrequency = 440
	probeAmplitude = 0.5
)

var (
	probeURL     string
	probeTimeout time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Exercise the endpoints of a running server",
	Long: `Send a synthetic 440 Hz test tone to a running ecosight server and check
/health, /classes, /model-info, /predict and /batch-predict.

Examples:
  ecosight probe
  ecosight probe --url http://sensor-gw:8000 -o table`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeURL, "url", "http://localhost:8000", "server base URL")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "per-request timeout")
	rootCmd.AddCommand(probeCmd)
}

// probeCheck is the outcome of one endpoint check.
type probeCheck struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Status   int    `json:"status" yaml:"status"`
	OK       bool   `json:"ok" yaml:"ok"`
	Latency  string `json:"latency" yaml:"latency"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type probeChecks []probeCheck

func (probeChecks) Header() []string { return []string{"ENDPOINT", "STATUS", "RESULT", "LATENCY", "DETAIL"} }

func (cs probeChecks) Rows() [][]string {
	rows := make([][]string, len(cs))
	for i, c := range cs {
		result := cli.DefaultStyles.OK.Render("pass")
		if !c.OK {
			result = cli.DefaultStyles.Fail.Render("fail")
		}
		rows[i] = []string{c.Endpoint, fmt.Sprint(c.Status), result, c.Latency, c.Detail}
	}
	return rows
}

// probeTone synthesizes the probe clip as a 16-bit WAV file.
func probeTone() ([]byte, error) {
	samples := make([]float32, probeRate*probeSeconds)
	for i := range samples {
		t := float64(i) / probeRate
		samples[i] = float32(probeAmplitude * math.Sin(2*math.Pi*probeFrequency*t))
	}
	return wav.EncodeBytes(samples, probeRate)
}

// prober runs checks against one server.
type prober struct {
	base   string
	client *http.Client
}

// check performs req and decodes a JSON body into v. verify inspects the
// decoded body and returns a detail string, or an error to fail the check.
func (p *prober) check(ctx context.Context, endpoint string, req *http.Request, v any, verify func() (string, error)) probeCheck {
	c := probeCheck{Endpoint: endpoint}
	start := time.Now()
	resp, err := p.client.Do(req.WithContext(ctx))
	c.Latency = cli.FormatDuration(time.Since(start))
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	defer resp.Body.Close()
	c.Status = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	if resp.StatusCode != http.StatusOK {
		c.Detail = strings.TrimSpace(string(body))
		return c
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.Detail = fmt.Sprintf("invalid JSON: %v", err)
		return c
	}
	detail, err := verify()
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK, c.Detail = true, detail
	return c
}

func (p *prober) get(path string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, p.base+path, nil)
	return req
}

func (p *prober) upload(path, field string, clip []byte, names ...string) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
		h.Set("Content-Type", "audio/wav")
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(clip); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, p.base+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (p *prober) run(ctx context.Context, clip []byte) (probeChecks, error) {
	var checks probeChecks

	var health struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	checks = append(checks, p.check(ctx, "GET /health", p.get("/health"), &health, func() (string, error) {
		if !health.ModelLoaded {
			return "", fmt.Errorf("status %s, model not loaded", health.Status)
		}
		return health.Status, nil
	}))

	var classes struct {
		Classes map[string]string `json:"classes"`
	}
	checks = append(checks, p.check(ctx, "GET /classes", p.get("/classes"), &classes, func() (string, error) {
		if len(classes.Classes) == 0 {
			return "", fmt.Errorf("no classes")
		}
		return fmt.Sprintf("%d classes", len(classes.Classes)), nil
	}))

	var info struct {
		ModelType  string `json:"model_type"`
		NumClasses int    `json:"num_classes"`
	}
	checks = append(checks, p.check(ctx, "GET /model-info", p.get("/model-info"), &info, func() (string, error) {
		return fmt.Sprintf("%s, %d classes", info.ModelType, info.NumClasses), nil
	}))

	req, err := p.upload("/predict", "file", clip, "probe_tone.wav")
	if err != nil {
		return nil, err
	}
	var det struct {
		ID             string             `json:"id"`
		PredictedClass string             `json:"predicted_class"`
		Confidence     float64            `json:"confidence"`
		Priority       string             `json:"priority"`
		AllPredictions map[string]float64 `json:"all_predictions"`
	}
	checks = append(checks, p.check(ctx, "POST /predict", req, &det, func() (string, error) {
		if det.ID == "" || det.PredictedClass == "" {
			return "", fmt.Errorf("incomplete detection")
		}
		if det.AllPredictions[det.PredictedClass] != det.Confidence {
			return "", fmt.Errorf("confidence %v does not match all_predictions", det.Confidence)
		}
		return fmt.Sprintf("%s %s (%s)", det.PredictedClass, cli.FormatPercent(det.Confidence), det.Priority), nil
	}))

	req, err = p.upload("/batch-predict", "files", clip, "probe_1.wav", "probe_2.wav")
	if err != nil {
		return nil, err
	}
	var batch struct {
		Results []struct {
			Filename string `json:"filename"`
			Error    string `json:"error"`
		} `json:"results"`
		Total int `json:"total"`
	}
	checks = append(checks, p.check(ctx, "POST /batch-predict", req, &batch, func() (string, error) {
		if batch.Total != 2 || len(batch.Results) != 2 {
			return "", fmt.Errorf("total %d, want 2", batch.Total)
		}
		for _, r := range batch.Results {
			if r.Error != "" {
				return "", fmt.Errorf("%s: %s", r.Filename, r.Error)
			}
		}
		return "2 results", nil
	}))

	return checks, nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	clip, err := probeTone()
	if err != nil {
		return err
	}
	p := &prober{
		base:   strings.TrimRight(probeURL, "/"),
		client: &http.Client{Timeout: probeTimeout},
	}
	checks, err := p.run(cmd.Context(), clip)
	if err != nil {
		return err
	}
	if err := output(cmd, checks); err != nil {
		return err
	}

	failed := 0
	for _, c := range checks {
		if !c.OK {
			failed++
			cli.PrintFailure(cmd.ErrOrStderr(), "%s: %s", c.Endpoint, c.Detail)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	cli.PrintSuccess(cmd.ErrOrStderr(), "all %d checks passed against %s", len(checks), p.base)
	return nil
}
