// Package fbank computes log mel filterbank frames from 16 kHz mono audio.
//
// Defaults follow the YAMNet front end:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms, periodic Hann)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     64
//	LowFreq:     125
//	HighFreq:   7500
//	LogOffset:   0.001
package fbank

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrInvalidConfig is returned by New for unusable parameters.
var ErrInvalidConfig = errors.New("fbank: invalid config")

// Config controls mel filterbank extraction.
type Config struct {
	SampleRate  int     // audio sample rate in Hz
	WindowSize  int     // window length in samples
	HopSize     int     // hop length in samples
	FFTSize     int     // FFT size, at least WindowSize
	NumMels     int     // number of mel bins
	LowFreq     float64 // lowest filter edge in Hz
	HighFreq    float64 // highest filter edge in Hz
	PreEmphasis float64 // pre-emphasis coefficient, 0 disables
	LogOffset   float64 // added before the log to bound silence
}

// DefaultConfig returns the YAMNet-compatible configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		WindowSize: 400,
		HopSize:    160,
		FFTSize:    512,
		NumMels:    64,
		LowFreq:    125,
		HighFreq:   7500,
		LogOffset:  0.001,
	}
}

// Validate reports whether c describes a usable filterbank.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.WindowSize <= 1 || c.HopSize <= 0:
		return fmt.Errorf("%w: window %d hop %d", ErrInvalidConfig, c.WindowSize, c.HopSize)
	case c.FFTSize < c.WindowSize:
		return fmt.Errorf("%w: fft size %d below window %d", ErrInvalidConfig, c.FFTSize, c.WindowSize)
	case c.NumMels <= 0:
		return fmt.Errorf("%w: %d mel bins", ErrInvalidConfig, c.NumMels)
	case c.LowFreq < 0 || c.HighFreq <= c.LowFreq || c.HighFreq > float64(c.SampleRate)/2:
		return fmt.Errorf("%w: band %v-%v Hz at %d Hz", ErrInvalidConfig, c.LowFreq, c.HighFreq, c.SampleRate)
	case c.LogOffset <= 0:
		return fmt.Errorf("%w: log offset %v", ErrInvalidConfig, c.LogOffset)
	}
	return nil
}

// Extractor computes log mel frames. It is not safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	fft     *fourier.FFT
	frame   []float64
	coeffs  []complex128
}

// New creates an Extractor for cfg.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
		fft:     fourier.NewFFT(cfg.FFTSize),
		frame:   make([]float64, cfg.FFTSize),
		coeffs:  make([]complex128, cfg.FFTSize/2+1),
	}, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// NumFrames returns how many frames Extract yields for n samples. Input
// shorter than one window is zero-padded to a single frame.
func (e *Extractor) NumFrames(n int) int {
	if n <= 0 {
		return 0
	}
	if n < e.cfg.WindowSize {
		return 1
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// Extract computes [T][NumMels] log mel energies from samples in [-1, 1].
func (e *Extractor) Extract(samples []float32) [][]float32 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(samples))
	features := make([][]float32, numFrames)
	power := make([]float64, len(e.coeffs))

	for t := range numFrames {
		start := t * cfg.HopSize
		clear(e.frame)
		for i := 0; i < cfg.WindowSize && start+i < len(samples); i++ {
			s := float64(samples[start+i])
			if cfg.PreEmphasis != 0 && start+i > 0 {
				s -= cfg.PreEmphasis * float64(samples[start+i-1])
			}
			e.frame[i] = s * e.window[i]
		}

		e.fft.Coefficients(e.coeffs, e.frame)
		for k, c := range e.coeffs {
			a := cmplx.Abs(c)
			power[k] = a * a
		}

		mel := make([]float32, cfg.NumMels)
		for m, filter := range e.melBank {
			var sum float64
			for k, w := range filter {
				sum += w * power[k]
			}
			mel[m] = float32(math.Log(sum + cfg.LogOffset))
		}
		features[t] = mel
	}
	return features
}
