package classifier

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Activation names understood by Dense.
const (
	Linear  = "linear"
	ReLU    = "relu"
	Sigmoid = "sigmoid"
	Tanh    = "tanh"
	Softmax = "softmax"
)

type layer struct {
	w   *mat.Dense // in x out
	b   *mat.VecDense
	act string
}

// Dense is a feed-forward network of fully connected layers. It is immutable
// after construction and safe for concurrent use.
type Dense struct {
	layers []layer
	info   Info
}

var _ Classifier = (*Dense)(nil)

// NewDense builds a network from a validated weight file.
func NewDense(wf *WeightFile, source string) (*Dense, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	d := &Dense{layers: make([]layer, len(wf.Layers))}
	params := 0
	for i, l := range wf.Layers {
		in, out := len(l.Weights), len(l.Weights[0])
		data := make([]float64, 0, in*out)
		for _, row := range l.Weights {
			data = append(data, row...)
		}
		bias := make([]float64, out)
		copy(bias, l.Bias)
		d.layers[i] = layer{
			w:   mat.NewDense(in, out, data),
			b:   mat.NewVecDense(out, bias),
			act: activationName(l.Activation),
		}
		params += in*out + out
	}

	d.info = Info{
		Name:        wf.Name,
		Version:     wf.Version,
		Type:        "dense",
		Source:      source,
		InputShape:  []int{1, wf.InputDim()},
		OutputShape: []int{1, wf.OutputDim()},
		Parameters:  params,
		Labels:      append([]string(nil), wf.Labels...),
	}
	return d, nil
}

// InputDim returns the width of the first layer.
func (d *Dense) InputDim() int {
	r, _ := d.layers[0].w.Dims()
	return r
}

// OutputDim returns the width of the last layer.
func (d *Dense) OutputDim() int {
	_, c := d.layers[len(d.layers)-1].w.Dims()
	return c
}

// Describe returns model info.
func (d *Dense) Describe() Info {
	return d.info
}

// Classify runs the forward pass.
func (d *Dense) Classify(ctx context.Context, embedding []float32) ([]float32, error) {
	if len(embedding) != d.InputDim() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputDim, len(embedding), d.InputDim())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x := make([]float64, len(embedding))
	for i, v := range embedding {
		x[i] = float64(v)
	}
	v := mat.NewVecDense(len(x), x)

	for _, l := range d.layers {
		_, out := l.w.Dims()
		y := mat.NewVecDense(out, nil)
		y.MulVec(l.w.T(), v)
		y.AddVec(y, l.b)
		activate(l.act, y.RawVector().Data)
		v = y
	}

	raw := v.RawVector().Data
	res := make([]float32, len(raw))
	for i, p := range raw {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("classifier: non-finite output at index %d", i)
		}
		res[i] = float32(p)
	}
	return res, nil
}

func activationName(s string) string {
	if s == "" {
		return Linear
	}
	return s
}

func validActivation(s string) bool {
	switch activationName(s) {
	case Linear, ReLU, Sigmoid, Tanh, Softmax:
		return true
	}
	return false
}

// activate applies the named activation to x in place.
func activate(name string, x []float64) {
	switch name {
	case ReLU:
		for i, v := range x {
			if v < 0 {
				x[i] = 0
			}
		}
	case Sigmoid:
		for i, v := range x {
			x[i] = 1 / (1 + math.Exp(-v))
		}
	case Tanh:
		for i, v := range x {
			x[i] = math.Tanh(v)
		}
	case Softmax:
		softmax(x)
	}
}

// softmax normalizes x in place, shifting by the max for stability.
func softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	m := floats.Max(x)
	for i, v := range x {
		x[i] = math.Exp(v - m)
	}
	floats.Scale(1/floats.Sum(x), x)
}
