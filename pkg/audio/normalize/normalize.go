// Package normalize turns arbitrary uploaded audio into the fixed-shape mono
// signal consumed by embedding extractors.
//
// The steps are: decode, mix down to mono, resample to the model rate, keep
// the leading window, reject clips that are too short, then peak-normalize.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/ecosight/ecosight/pkg/audio/codec"
	"github.com/ecosight/ecosight/pkg/audio/pcm"
	"github.com/ecosight/ecosight/pkg/audio/resampler"
)

// Validation failures. All of them describe the input, never the models.
var (
	ErrEmpty    = errors.New("normalize: empty audio")
	ErrDecode   = errors.New("normalize: cannot decode audio")
	ErrTooShort = errors.New("normalize: audio too short")
)

// Defaults used by the bundled YAMNet-class models.
const (
	DefaultSampleRate  = 16000
	DefaultMaxDuration = 4 * time.Second
	DefaultMinSamples  = 160
)

// decodeMargin is decoded beyond MaxDuration.
const decodeMargin = 100 * time.Millisecond

// Config controls the shape of normalized signals.
type Config struct {
	// SampleRate is the output rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// MaxDuration is the length of the leading window that is kept.
	MaxDuration time.Duration `yaml:"-" json:"-"`

	// MinSamples is the shortest accepted signal after truncation.
	MinSamples int `yaml:"min_samples" json:"min_samples"`
}

// DefaultConfig returns the configuration the bundled models were trained
// with.
func DefaultConfig() Config {
	return Config{
		SampleRate:  DefaultSampleRate,
		MaxDuration: DefaultMaxDuration,
		MinSamples:  DefaultMinSamples,
	}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("normalize: invalid sample rate %d", c.SampleRate)
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("normalize: invalid max duration %v", c.MaxDuration)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("normalize: invalid min samples %d", c.MinSamples)
	}
	if c.MinSamples > pcm.SamplesIn(c.MaxDuration, c.SampleRate) {
		return fmt.Errorf("normalize: min samples %d exceed the %v window", c.MinSamples, c.MaxDuration)
	}
	return nil
}

// Normalizer converts raw audio payloads to normalized signals. It holds no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	cfg Config
}

// New creates a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{cfg: cfg}, nil
}

// Config returns the normalizer's configuration.
func (n *Normalizer) Config() Config {
	return n.cfg
}

// MaxSamples returns the length of the kept window in samples.
func (n *Normalizer) MaxSamples() int {
	return pcm.SamplesIn(n.cfg.MaxDuration, n.cfg.SampleRate)
}

// Normalize decodes raw and returns a mono signal at the configured rate,
// truncated to the leading window and scaled so its peak is ±1. Silence is
// returned unscaled.
func (n *Normalizer) Normalize(raw []byte) (*pcm.Signal, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	// Decoding stops shortly past the kept window; the margin covers
	// resampler edge effects at the cut.
	buf, err := codec.Decode(raw, n.cfg.MaxDuration+decodeMargin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	mono := buf.Mono()
	if buf.SampleRate != n.cfg.SampleRate {
		mono, err = resampler.Resample(mono, buf.SampleRate, n.cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}

	sig := pcm.NewSignal(mono, n.cfg.SampleRate).Truncate(n.MaxSamples())
	if sig.Len() < n.cfg.MinSamples {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", ErrTooShort, sig.Len(), n.cfg.MinSamples)
	}
	return sig.PeakNormalize(), nil
}
