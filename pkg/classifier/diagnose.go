package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

// DegenerateSpread is the largest per-class score range across probe inputs
// below which a classifier is reported as degenerate.
const DegenerateSpread = 1e-3

// Probe is the outcome of one synthetic input.
type Probe struct {
	Name   string    `json:"name" yaml:"name"`
	Scores []float32 `json:"scores" yaml:"scores"`
	Sum    float64   `json:"sum" yaml:"sum"`
	Argmax int       `json:"argmax" yaml:"argmax"`
}

// Diagnosis summarizes how a classifier reacts to synthetic embeddings.
type Diagnosis struct {
	Probes []Probe `json:"probes" yaml:"probes"`

	// Spread is the largest range of any single class score across probes.
	Spread float64 `json:"spread" yaml:"spread"`

	// Degenerate is set when every probe produced nearly the same scores,
	// which usually means an untrained or mis-exported head.
	Degenerate bool `json:"degenerate" yaml:"degenerate"`
}

// Diagnose feeds zeros, ones, and small and large random embeddings to c.
// The random inputs are drawn from a generator seeded with seed.
func Diagnose(ctx context.Context, c Classifier, seed uint64) (*Diagnosis, error) {
	dim := c.InputDim()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	inputs := []struct {
		name string
		vec  []float32
	}{
		{"zeros", fill(dim, func() float32 { return 0 })},
		{"ones", fill(dim, func() float32 { return 1 })},
		{"random_small", fill(dim, func() float32 { return float32(rng.NormFloat64() * 0.1) })},
		{"random_large", fill(dim, func() float32 { return float32(rng.NormFloat64()) })},
	}

	d := &Diagnosis{}
	for _, in := range inputs {
		scores, err := c.Classify(ctx, in.vec)
		if err != nil {
			return nil, fmt.Errorf("classifier: diagnose %s: %w", in.name, err)
		}
		p := Probe{Name: in.name, Scores: scores}
		best := float32(math.Inf(-1))
		for i, s := range scores {
			p.Sum += float64(s)
			if s > best {
				best, p.Argmax = s, i
			}
		}
		d.Probes = append(d.Probes, p)
	}

	for j := range c.OutputDim() {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range d.Probes {
			if j >= len(p.Scores) {
				continue
			}
			v := float64(p.Scores[j])
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		if hi-lo > d.Spread {
			d.Spread = hi - lo
		}
	}
	d.Degenerate = d.Spread < DegenerateSpread
	return d, nil
}

func fill(n int, f func() float32) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = f()
	}
	return v
}
