package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ecosight/ecosight/pkg/storage"
)

// WeightFile is the serialized form of a Dense network.
//
// Each layer's Weights matrix is laid out input-major (Weights[i][j] is the
// weight from input i to output j), matching the kernel layout of a Keras
// Dense layer.
type WeightFile struct {
	Name    string        `json:"name" yaml:"name" msgpack:"name"`
	Version string        `json:"version,omitempty" yaml:"version,omitempty" msgpack:"version,omitempty"`
	Labels  []string      `json:"labels,omitempty" yaml:"labels,omitempty" msgpack:"labels,omitempty"`
	Layers  []WeightLayer `json:"layers" yaml:"layers" msgpack:"layers"`
}

// WeightLayer is one fully connected layer.
type WeightLayer struct {
	Activation string      `json:"activation,omitempty" yaml:"activation,omitempty" msgpack:"activation,omitempty"`
	Weights    [][]float64 `json:"weights" yaml:"weights" msgpack:"weights"`
	Bias       []float64   `json:"bias,omitempty" yaml:"bias,omitempty" msgpack:"bias,omitempty"`
}

// InputDim returns the input width of the first layer, or 0.
func (wf *WeightFile) InputDim() int {
	if len(wf.Layers) == 0 {
		return 0
	}
	return len(wf.Layers[0].Weights)
}

// OutputDim returns the output width of the last layer, or 0.
func (wf *WeightFile) OutputDim() int {
	if len(wf.Layers) == 0 {
		return 0
	}
	last := wf.Layers[len(wf.Layers)-1]
	if len(last.Weights) == 0 {
		return 0
	}
	return len(last.Weights[0])
}

// Validate checks that layer shapes chain and activations are known.
func (wf *WeightFile) Validate() error {
	if len(wf.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidWeights)
	}
	prev := -1
	for i, l := range wf.Layers {
		in := len(l.Weights)
		if in == 0 || len(l.Weights[0]) == 0 {
			return fmt.Errorf("%w: layer %d is empty", ErrInvalidWeights, i)
		}
		out := len(l.Weights[0])
		for r, row := range l.Weights {
			if len(row) != out {
				return fmt.Errorf("%w: layer %d row %d has %d values, want %d", ErrInvalidWeights, i, r, len(row), out)
			}
		}
		if prev >= 0 && in != prev {
			return fmt.Errorf("%w: layer %d takes %d inputs, previous layer emits %d", ErrInvalidWeights, i, in, prev)
		}
		if l.Bias != nil && len(l.Bias) != out {
			return fmt.Errorf("%w: layer %d bias has %d values, want %d", ErrInvalidWeights, i, len(l.Bias), out)
		}
		if !validActivation(l.Activation) {
			return fmt.Errorf("%w: layer %d has unknown activation %q", ErrInvalidWeights, i, l.Activation)
		}
		prev = out
	}
	if len(wf.Labels) > 0 && len(wf.Labels) != prev {
		return fmt.Errorf("%w: %d labels for %d outputs", ErrInvalidWeights, len(wf.Labels), prev)
	}
	return nil
}

// DecodeWeights parses a weight file. The format is chosen by the file
// extension of name: .yaml/.yml, .json, or .msgpack/.mpk.
func DecodeWeights(name string, data []byte) (*WeightFile, error) {
	var wf WeightFile
	var err error
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &wf)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&wf)
	case ".msgpack", ".mpk":
		err = msgpack.Unmarshal(data, &wf)
	default:
		return nil, fmt.Errorf("%w: unsupported weight file extension %q", ErrInvalidWeights, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidWeights, name, err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// EncodeWeights serializes wf in the format implied by name's extension.
func EncodeWeights(name string, wf *WeightFile) ([]byte, error) {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".yaml", ".yml":
		return yaml.Marshal(wf)
	case ".json":
		return json.MarshalIndent(wf, "", "  ")
	case ".msgpack", ".mpk":
		return msgpack.Marshal(wf)
	default:
		return nil, fmt.Errorf("%w: unsupported weight file extension %q", ErrInvalidWeights, ext)
	}
}

// LoadDense reads a weight file from store and builds a Dense network. The
// artifact's URI is recorded as the model source.
func LoadDense(ctx context.Context, store storage.Store, name string) (*Dense, error) {
	source := storage.URI(store, name)
	data, err := storage.ReadFile(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("classifier: load %s: %w", source, err)
	}
	wf, err := DecodeWeights(name, data)
	if err != nil {
		return nil, err
	}
	return NewDense(wf, source)
}
