package resampler

import (
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrChannelMismatch is returned when the source and destination formats
// disagree on channel count. Channel mixing happens before resampling.
var ErrChannelMismatch = errors.New("resampler: channel count mismatch")

// Resampler converts interleaved float64 samples from one rate to another.
// A Resampler keeps filter state between calls and is not safe for
// concurrent use.
type Resampler struct {
	src, dst Format
	r        resampling.Resampler
}

// New creates a Resampler from src to dst. When the rates are equal the
// returned Resampler copies its input.
func New(src, dst Format) (*Resampler, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if err := dst.validate(); err != nil {
		return nil, err
	}
	if src.channels() != dst.channels() {
		return nil, fmt.Errorf("%w: %d -> %d", ErrChannelMismatch, src.channels(), dst.channels())
	}

	rs := &Resampler{src: src, dst: dst}
	if src.SampleRate == dst.SampleRate {
		return rs, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(src.SampleRate),
		OutputRate: float64(dst.SampleRate),
		Channels:   dst.channels(),
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}
	rs.r = r
	return rs, nil
}

// Process resamples one block of interleaved samples. Output values are
// clamped to [-1, 1]; the filter can overshoot slightly on full-scale input.
// The filter delay holds back a tail of each stream until Flush.
func (r *Resampler) Process(samples []float64) ([]float64, error) {
	if r.r == nil {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}
	out, err := r.r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	return clamp(out), nil
}

// Flush returns the samples still held in the filter once the input has
// ended. The Resampler must not be used afterwards.
func (r *Resampler) Flush() ([]float64, error) {
	if r.r == nil {
		return nil, nil
	}
	out, err := r.r.Flush()
	if err != nil {
		return nil, fmt.Errorf("resampler: flush: %w", err)
	}
	return clamp(out), nil
}

// Latency returns the filter delay in output samples.
func (r *Resampler) Latency() int {
	if r.r == nil {
		return 0
	}
	return r.r.GetLatency()
}

// Ratio returns dst/src sample rate.
func (r *Resampler) Ratio() float64 {
	return float64(r.dst.SampleRate) / float64(r.src.SampleRate)
}

// OutputLen returns the number of samples n input samples become at dst,
// rounded to nearest.
func OutputLen(n, srcRate, dstRate int) int {
	return int((int64(n)*int64(dstRate) + int64(srcRate)/2) / int64(srcRate))
}

// Resample converts a complete mono clip from srcRate to dstRate. The filter
// is flushed and its leading delay dropped, so the result holds exactly
// OutputLen(len(samples), srcRate, dstRate) samples.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	r, err := New(Format{SampleRate: srcRate}, Format{SampleRate: dstRate})
	if err != nil {
		return nil, err
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, err
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, err
	}
	out = append(out, tail...)

	want := OutputLen(len(samples), srcRate, dstRate)
	if skip := min(max(r.Latency(), 0), len(out)-want); skip > 0 {
		out = out[skip:]
	}
	switch {
	case len(out) > want:
		out = out[:want]
	case len(out) < want:
		out = append(out, make([]float64, want-len(out))...)
	}
	return out, nil
}

func clamp(samples []float64) []float64 {
	for i, s := range samples {
		switch {
		case s > 1:
			samples[i] = 1
		case s < -1:
			samples[i] = -1
		}
	}
	return samples
}
