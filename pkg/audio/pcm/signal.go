package pcm

import (
	"math"
	"time"
)

// Buffer is decoded PCM audio in floating point, interleaved by channel.
// Samples are in [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Mono returns the buffer collapsed to a single channel by averaging all
// channels of each frame. A mono buffer is returned as a copy.
func (b *Buffer) Mono() []float64 {
	ch := b.Channels
	if ch <= 1 {
		out := make([]float64, len(b.Samples))
		copy(out, b.Samples)
		return out
	}
	n := b.Frames()
	out := make([]float64, n)
	for i := range n {
		var sum float64
		for c := range ch {
			sum += b.Samples[i*ch+c]
		}
		out[i] = sum / float64(ch)
	}
	return out
}

// Signal is a mono floating-point PCM signal at a fixed sample rate.
type Signal struct {
	Samples    []float32
	SampleRate int
}

// NewSignal converts float64 mono samples into a Signal.
func NewSignal(samples []float64, sampleRate int) *Signal {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s)
	}
	return &Signal{Samples: out, SampleRate: sampleRate}
}

// Len returns the number of samples.
func (s *Signal) Len() int {
	return len(s.Samples)
}

// Duration returns the playback duration of the signal.
func (s *Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// Peak returns the largest absolute sample value.
func (s *Signal) Peak() float32 {
	var peak float32
	for _, v := range s.Samples {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	return peak
}

// Truncate returns a signal holding at most n leading samples. The receiver
// is returned unchanged when it is already short enough.
func (s *Signal) Truncate(n int) *Signal {
	if n < 0 || len(s.Samples) <= n {
		return s
	}
	out := make([]float32, n)
	copy(out, s.Samples[:n])
	return &Signal{Samples: out, SampleRate: s.SampleRate}
}

// PeakNormalize returns a new signal scaled so that its loudest sample
// reaches exactly ±1. Digital silence (peak 0) is returned as an unscaled
// copy.
func (s *Signal) PeakNormalize() *Signal {
	out := make([]float32, len(s.Samples))
	peak := s.Peak()
	if peak == 0 {
		copy(out, s.Samples)
		return &Signal{Samples: out, SampleRate: s.SampleRate}
	}
	for i, v := range s.Samples {
		out[i] = v / peak
	}
	return &Signal{Samples: out, SampleRate: s.SampleRate}
}

// SamplesIn returns the number of samples spanning d at sampleRate.
func SamplesIn(d time.Duration, sampleRate int) int {
	return int(int64(sampleRate) * int64(d) / int64(time.Second))
}
