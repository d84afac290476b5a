package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultInputDim  = 1024
	defaultOutputDim = 4
	maxErrorBody     = 512
)

// Remote implements [Classifier] against a TensorFlow Serving style predict
// endpoint using the row format:
//
//	request:  {"instances": [[e0, e1, ...]]}
//	response: {"predictions": [[p0, p1, ...]]}
type Remote struct {
	url        string
	name       string
	inputDim   int
	outputDim  int
	labels     []string
	httpClient *http.Client
}

var _ Classifier = (*Remote)(nil)

// NewRemote creates a classifier that posts to url.
func NewRemote(url string, opts ...Option) *Remote {
	cfg := config{
		name:       "remote",
		inputDim:   defaultInputDim,
		outputDim:  defaultOutputDim,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Remote{
		url:        url,
		name:       cfg.name,
		inputDim:   cfg.inputDim,
		outputDim:  cfg.outputDim,
		labels:     cfg.labels,
		httpClient: cfg.httpClient,
	}
}

// InputDim returns the configured embedding width.
func (r *Remote) InputDim() int { return r.inputDim }

// OutputDim returns the configured class count.
func (r *Remote) OutputDim() int { return r.outputDim }

// Describe returns model info. The parameter count of a remote model is not
// known.
func (r *Remote) Describe() Info {
	return Info{
		Name:        r.name,
		Type:        "remote",
		Source:      r.url,
		InputShape:  []int{1, r.inputDim},
		OutputShape: []int{1, r.outputDim},
		Labels:      append([]string(nil), r.labels...),
	}
}

type instancesRequest struct {
	Instances [][]float32 `json:"instances"`
}

type predictionsResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Classify posts a batch of one and returns its scores.
func (r *Remote) Classify(ctx context.Context, embedding []float32) ([]float32, error) {
	if len(embedding) != r.inputDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputDim, len(embedding), r.inputDim)
	}
	out, err := r.predict(ctx, embedding)
	if err != nil {
		return nil, err
	}
	if len(out) != r.outputDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrOutputDim, len(out), r.outputDim)
	}
	return out, nil
}

// QueryOutputDim asks the endpoint how many scores it emits by classifying
// an all-zero embedding. The configured output width is not consulted.
func (r *Remote) QueryOutputDim(ctx context.Context) (int, error) {
	out, err := r.predict(ctx, make([]float32, r.inputDim))
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("%w: endpoint returned no scores", ErrOutputDim)
	}
	return len(out), nil
}

func (r *Remote) predict(ctx context.Context, embedding []float32) ([]float32, error) {
	body, err := json.Marshal(instancesRequest{Instances: [][]float32{embedding}})
	if err != nil {
		return nil, fmt.Errorf("classifier: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("classifier: endpoint returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var pr predictionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("classifier: endpoint error: %s", pr.Error)
	}
	if len(pr.Predictions) != 1 {
		return nil, fmt.Errorf("classifier: got %d predictions for a batch of 1", len(pr.Predictions))
	}
	return pr.Predictions[0], nil
}
