// Package embedding defines the audio embedding extractor contract and the
// reduction the classifier expects.
//
// An Extractor turns a normalized signal into one or more fixed-width
// frames (YAMNet-class models emit one 1024-dim frame per ~0.48 s hop).
// Consumers never use frames directly: they reduce them with Mean.
//
// # Implementations
//
//   - [Remote]: a TensorFlow Serving compatible HTTP model endpoint
//   - [LogMel]: a local log mel filterbank, for heads trained on mel features
//
// # Quick Start
//
//	x := embedding.NewRemote("http://yamnet:8501/v1/models/yamnet:predict")
//	frames, err := x.Extract(ctx, sig)
//	vec, err := embedding.Mean(frames, x.Dimension())
package embedding

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ecosight/ecosight/pkg/audio/pcm"
)

// DefaultDimension is the embedding width of YAMNet.
const DefaultDimension = 1024

// Frames is the per-hop output of an Extractor. Every frame has the
// extractor's Dimension.
type Frames [][]float32

// Extractor computes embedding frames from a normalized signal.
//
// Implementations must be safe for concurrent use.
type Extractor interface {
	// Extract returns at least one frame for sig.
	Extract(ctx context.Context, sig *pcm.Signal) (Frames, error)

	// Dimension returns the width of each frame.
	Dimension() int
}

// Common errors.
var (
	// ErrNoFrames is returned when an extractor produced zero frames.
	ErrNoFrames = errors.New("embedding: no frames")

	// ErrDimension is returned when a frame has the wrong width.
	ErrDimension = errors.New("embedding: dimension mismatch")

	// ErrEmptySignal is returned when Extract is given an empty signal.
	ErrEmptySignal = errors.New("embedding: empty signal")
)

// Mean reduces frames to a single vector by averaging element-wise. Every
// frame must have exactly dim values.
func Mean(frames Frames, dim int) ([]float32, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrDimension, dim)
	}

	sum := make([]float64, dim)
	row := make([]float64, dim)
	for i, f := range frames {
		if len(f) != dim {
			return nil, fmt.Errorf("%w: frame %d has %d values, want %d", ErrDimension, i, len(f), dim)
		}
		for j, v := range f {
			row[j] = float64(v)
		}
		floats.Add(sum, row)
	}
	floats.Scale(1/float64(len(frames)), sum)

	out := make([]float32, dim)
	for i, v := range sum {
		out[i] = float32(v)
	}
	return out, nil
}
