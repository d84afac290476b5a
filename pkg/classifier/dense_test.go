package classifier

import (
	"context"
	"errors"
	"math"
	"testing"
)

func mustDense(t *testing.T, wf *WeightFile) *Dense {
	t.Helper()
	d, err := NewDense(wf, "test")
	if err != nil {
		t.Fatalf("NewDense: %v", err)
	}
	return d
}

func TestDense_WeightLayout(t *testing.T) {
	d := mustDense(t, &WeightFile{
		Name: "layout",
		Layers: []WeightLayer{{
			Weights: [][]float64{{1, 2, 3}, {4, 5, 6}},
		}},
	})
	if d.InputDim() != 2 || d.OutputDim() != 3 {
		t.Fatalf("dims = %dx%d, want 2x3", d.InputDim(), d.OutputDim())
	}

	got, err := d.Classify(context.Background(), []float32{1, 1})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	want := []float32{5, 7, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDense_ReLUSoftmax(t *testing.T) {
	d := mustDense(t, &WeightFile{
		Layers: []WeightLayer{
			{Activation: ReLU, Weights: [][]float64{{1, 0}, {0, 1}}, Bias: []float64{0, 0}},
			{Activation: Softmax, Weights: [][]float64{{1, -1}, {0, 0}}},
		},
	})

	got, err := d.Classify(context.Background(), []float32{2, -1})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	want0 := 1 / (1 + math.Exp(-4))
	if math.Abs(float64(got[0])-want0) > 1e-6 {
		t.Errorf("out[0] = %v, want %v", got[0], want0)
	}
	if sum := float64(got[0] + got[1]); math.Abs(sum-1) > 1e-6 {
		t.Errorf("sum = %v, want 1", sum)
	}
}

func TestDense_Bias(t *testing.T) {
	d := mustDense(t, &WeightFile{
		Layers: []WeightLayer{{Activation: Tanh, Weights: [][]float64{{0}}, Bias: []float64{0.5}}},
	})
	got, err := d.Classify(context.Background(), []float32{3})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if want := float32(math.Tanh(0.5)); math.Abs(float64(got[0]-want)) > 1e-6 {
		t.Errorf("out = %v, want %v", got[0], want)
	}
}

func TestDense_InputDim(t *testing.T) {
	d := mustDense(t, &WeightFile{Layers: []WeightLayer{{Weights: [][]float64{{1}, {1}}}}})
	_, err := d.Classify(context.Background(), []float32{1, 2, 3})
	if !errors.Is(err, ErrInputDim) {
		t.Errorf("err = %v, want ErrInputDim", err)
	}
}

func TestDense_Describe(t *testing.T) {
	d := mustDense(t, &WeightFile{
		Name:    "head",
		Version: "2",
		Labels:  []string{"a", "b"},
		Layers: []WeightLayer{
			{Activation: ReLU, Weights: [][]float64{{1, 1, 1}, {1, 1, 1}}, Bias: []float64{0, 0, 0}},
			{Activation: Softmax, Weights: [][]float64{{1, 0}, {0, 1}, {1, 1}}, Bias: []float64{0, 0}},
		},
	})
	info := d.Describe()
	if info.Type != "dense" || info.Name != "head" || info.Version != "2" {
		t.Errorf("info = %+v", info)
	}
	// (2*3 + 3) + (3*2 + 2)
	if info.Parameters != 17 {
		t.Errorf("Parameters = %d, want 17", info.Parameters)
	}
	if info.InputShape[1] != 2 || info.OutputShape[1] != 2 {
		t.Errorf("shapes = %v -> %v", info.InputShape, info.OutputShape)
	}
	if len(info.Labels) != 2 {
		t.Errorf("Labels = %v", info.Labels)
	}
}

func TestSoftmax_Stable(t *testing.T) {
	x := []float64{1000, 1000, 999}
	softmax(x)
	var sum float64
	for _, v := range x {
		if math.IsNaN(v) {
			t.Fatalf("NaN in %v", x)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("sum = %v, want 1", sum)
	}
	if x[0] != x[1] {
		t.Errorf("equal logits gave %v and %v", x[0], x[1])
	}
}

func TestActivate(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{ReLU, []float64{-1, 0, 2}, []float64{0, 0, 2}},
		{Sigmoid, []float64{0}, []float64{0.5}},
		{Linear, []float64{-3, 3}, []float64{-3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activate(tt.name, tt.in)
			for i := range tt.want {
				if math.Abs(tt.in[i]-tt.want[i]) > 1e-12 {
					t.Errorf("[%d] = %v, want %v", i, tt.in[i], tt.want[i])
				}
			}
		})
	}
}

func TestWeightFile_Validate(t *testing.T) {
	tests := []struct {
		name string
		wf   WeightFile
	}{
		{"no layers", WeightFile{}},
		{"empty layer", WeightFile{Layers: []WeightLayer{{}}}},
		{"ragged rows", WeightFile{Layers: []WeightLayer{{Weights: [][]float64{{1, 2}, {1}}}}}},
		{"chain mismatch", WeightFile{Layers: []WeightLayer{
			{Weights: [][]float64{{1, 2}}},
			{Weights: [][]float64{{1}, {1}, {1}}},
		}}},
		{"bias length", WeightFile{Layers: []WeightLayer{{Weights: [][]float64{{1, 2}}, Bias: []float64{1}}}}},
		{"unknown activation", WeightFile{Layers: []WeightLayer{{Activation: "gelu", Weights: [][]float64{{1}}}}}},
		{"label count", WeightFile{Labels: []string{"a"}, Layers: []WeightLayer{{Weights: [][]float64{{1, 2}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.wf.Validate(); !errors.Is(err, ErrInvalidWeights) {
				t.Errorf("Validate() = %v, want ErrInvalidWeights", err)
			}
		})
	}
}
