package classifier

import (
	"net/http"
	"time"
)

// config holds configuration for the remote classifier.
type config struct {
	name       string
	inputDim   int
	outputDim  int
	labels     []string
	httpClient *http.Client
}

// Option configures a remote classifier.
type Option func(*config)

// WithName sets the model name reported by Describe.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithInputDim sets the expected embedding width.
func WithInputDim(dim int) Option {
	return func(c *config) { c.inputDim = dim }
}

// WithOutputDim sets the number of classes the endpoint scores.
func WithOutputDim(dim int) Option {
	return func(c *config) { c.outputDim = dim }
}

// WithLabels records the label order the endpoint was trained with.
func WithLabels(labels ...string) Option {
	return func(c *config) { c.labels = labels }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithTimeout sets a per-request timeout on a fresh HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.httpClient = &http.Client{Timeout: d} }
}
