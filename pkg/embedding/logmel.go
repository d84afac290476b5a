package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/ecosight/ecosight/pkg/audio/fbank"
	"github.com/ecosight/ecosight/pkg/audio/pcm"
)

// LogMel implements [Extractor] locally with a log mel filterbank: one
// frame of NumMels energies per 10 ms hop. It needs no model server; the
// classifier head must have been trained on the same features.
type LogMel struct {
	cfg  fbank.Config
	pool sync.Pool
}

var _ Extractor = (*LogMel)(nil)

// NewLogMel creates a filterbank extractor.
func NewLogMel(cfg fbank.Config) (*LogMel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &LogMel{cfg: cfg}
	l.pool.New = func() any {
		// cfg was validated above.
		e, _ := fbank.New(cfg)
		return e
	}
	return l, nil
}

// Dimension returns the number of mel bins.
func (l *LogMel) Dimension() int {
	return l.cfg.NumMels
}

// Extract computes log mel frames for sig, which must be at the filterbank
// sample rate.
func (l *LogMel) Extract(ctx context.Context, sig *pcm.Signal) (Frames, error) {
	if sig == nil || sig.Len() == 0 {
		return nil, ErrEmptySignal
	}
	if sig.SampleRate != l.cfg.SampleRate {
		return nil, fmt.Errorf("embedding: signal at %d Hz, filterbank expects %d Hz", sig.SampleRate, l.cfg.SampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := l.pool.Get().(*fbank.Extractor)
	defer l.pool.Put(e)
	return Frames(e.Extract(sig.Samples)), nil
}
