// Package classifier maps a single audio embedding to a probability
// distribution over threat classes.
//
// # Implementations
//
//   - [Dense]: an in-process feed-forward network loaded from a weight file
//     (YAML, JSON or msgpack), e.g. a Keras head exported layer by layer
//   - [Remote]: a TensorFlow Serving compatible HTTP endpoint
//
// Outputs are already normalized by the model's final activation; callers
// must not renormalize them.
package classifier

import (
	"context"
	"errors"
)

// Classifier scores one embedding.
//
// Implementations must be safe for concurrent use.
type Classifier interface {
	// Classify returns OutputDim scores for an embedding of InputDim values.
	Classify(ctx context.Context, embedding []float32) ([]float32, error)

	// InputDim returns the expected embedding width.
	InputDim() int

	// OutputDim returns the number of classes scored.
	OutputDim() int

	// Describe returns descriptive information about the model.
	Describe() Info
}

// Info describes a loaded classifier.
type Info struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Type is the implementation kind ("dense", "remote").
	Type string `json:"type" yaml:"type"`

	// Source is where the model came from (weight file URI or endpoint).
	Source string `json:"source" yaml:"source"`

	InputShape  []int `json:"input_shape" yaml:"input_shape"`
	OutputShape []int `json:"output_shape" yaml:"output_shape"`

	// Parameters is the number of trainable values, or 0 when unknown.
	Parameters int `json:"total_parameters" yaml:"total_parameters"`

	// Labels are the class names embedded in the model artifact, if any.
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Common errors.
var (
	// ErrInputDim is returned when an embedding has the wrong width.
	ErrInputDim = errors.New("classifier: input dimension mismatch")

	// ErrOutputDim is returned when a model produced the wrong number of
	// scores.
	ErrOutputDim = errors.New("classifier: output dimension mismatch")

	// ErrInvalidWeights is returned for malformed weight files.
	ErrInvalidWeights = errors.New("classifier: invalid weights")
)
