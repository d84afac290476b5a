package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ecosight/ecosight/pkg/audio/pcm"
)

const defaultOutputKey = "embeddings"

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

// Remote implements [Extractor] against a TensorFlow Serving style predict
// endpoint. The request carries the waveform as a single unnamed input:
//
//	{"inputs": [0.0, 0.12, ...]}
//
// The response holds either the embedding matrix directly in "outputs" or a
// map of named outputs, from which the configured key is used.
type Remote struct {
	url        string
	dim        int
	outputKey  string
	httpClient *http.Client
}

var _ Extractor = (*Remote)(nil)

// NewRemote creates an extractor that posts to url.
func NewRemote(url string, opts ...Option) *Remote {
	cfg := config{
		dim:        DefaultDimension,
		outputKey:  defaultOutputKey,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Remote{
		url:        url,
		dim:        cfg.dim,
		outputKey:  cfg.outputKey,
		httpClient: cfg.httpClient,
	}
}

// Dimension returns the configured frame width.
func (r *Remote) Dimension() int {
	return r.dim
}

// URL returns the predict endpoint.
func (r *Remote) URL() string {
	return r.url
}

type predictRequest struct {
	Inputs []float32 `json:"inputs"`
}

type predictResponse struct {
	Outputs json.RawMessage `json:"outputs"`
	Error   string          `json:"error,omitempty"`
}

// Extract posts the signal and returns the frames from the response. Frame
// widths are checked against Dimension.
func (r *Remote) Extract(ctx context.Context, sig *pcm.Signal) (Frames, error) {
	if sig == nil || sig.Len() == 0 {
		return nil, ErrEmptySignal
	}

	body, err := json.Marshal(predictRequest{Inputs: sig.Samples})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("embedding: endpoint returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("embedding: endpoint error: %s", pr.Error)
	}

	frames, err := r.parseOutputs(pr.Outputs)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	for i, f := range frames {
		if len(f) != r.dim {
			return nil, fmt.Errorf("%w: frame %d has %d values, want %d", ErrDimension, i, len(f), r.dim)
		}
	}
	return frames, nil
}

func (r *Remote) parseOutputs(raw json.RawMessage) (Frames, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("embedding: response has no outputs")
	}

	if raw[0] == '{' {
		var named map[string]json.RawMessage
		if err := json.Unmarshal(raw, &named); err != nil {
			return nil, fmt.Errorf("embedding: decode outputs: %w", err)
		}
		v, ok := named[r.outputKey]
		if !ok {
			return nil, fmt.Errorf("embedding: response has no %q output", r.outputKey)
		}
		raw = v
	}

	var frames Frames
	if err := json.Unmarshal(raw, &frames); err == nil {
		return frames, nil
	}
	// A single frame may be returned flat.
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("embedding: decode embeddings: %w", err)
	}
	return Frames{flat}, nil
}
