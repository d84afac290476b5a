package embedding

import (
	"net/http"
	"time"
)

// config holds configuration for the remote extractor.
type config struct {
	dim        int
	outputKey  string
	httpClient *http.Client
}

// Option configures an extractor.
type Option func(*config)

// WithDimension sets the expected frame width.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithOutputKey selects the named output holding the embeddings when the
// endpoint returns several outputs (YAMNet returns scores, embeddings and a
// spectrogram).
func WithOutputKey(key string) Option {
	return func(c *config) { c.outputKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithTimeout sets a per-request timeout on a fresh HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.httpClient = &http.Client{Timeout: d} }
}
