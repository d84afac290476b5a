package threat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Probabilities are classifier scores aligned with a label table.
type Probabilities []float64

// FromFloat32 converts classifier output.
func FromFloat32(v []float32) Probabilities {
	out := make(Probabilities, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Argmax returns the index of the largest value. Ties go to the lowest
// index. It returns -1 for an empty vector.
func (p Probabilities) Argmax() int {
	if len(p) == 0 {
		return -1
	}
	// floats.MaxIdx returns the first maximal index.
	return floats.MaxIdx(p)
}

// Sum returns the total probability mass.
func (p Probabilities) Sum() float64 {
	return floats.Sum(p)
}

// Check reports non-finite values.
func (p Probabilities) Check() error {
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("threat: probability %d is %v", i, v)
		}
	}
	return nil
}

// Map returns name to probability using t for names.
func (p Probabilities) Map(t LabelTable) map[string]float64 {
	out := make(map[string]float64, len(p))
	for i, v := range p {
		if i < len(t.Classes) {
			out[t.Classes[i].Name] = v
		}
	}
	return out
}
