// Package flac decodes FLAC streams into floating-point PCM.
package flac

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goflac "github.com/mewkiz/flac"

	"github.com/ecosight/ecosight/pkg/audio/pcm"
)

// ErrNoAudio is returned when the stream holds no audio frames.
var ErrNoAudio = errors.New("flac: no audio frames")

// Decode decodes a FLAC payload. When limit is positive, decoding stops once
// limit worth of sample frames has been read; the result may overshoot by
// less than one FLAC block.
func Decode(data []byte, limit time.Duration) (*pcm.Buffer, error) {
	stream, err := goflac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	if channels <= 0 || info.SampleRate == 0 {
		return nil, fmt.Errorf("flac: invalid stream info (%d channels, %d Hz)", channels, info.SampleRate)
	}
	if info.BitsPerSample < 4 || info.BitsPerSample > 32 {
		return nil, fmt.Errorf("flac: invalid stream info (%d-bit samples)", info.BitsPerSample)
	}
	scale := math.Ldexp(1, int(info.BitsPerSample)-1)

	// STREAMINFO sample counts are not trusted for allocation.
	maxFrames := -1
	if limit > 0 {
		maxFrames = pcm.SamplesIn(limit, int(info.SampleRate))
	}

	var samples []float64
	for maxFrames < 0 || len(samples)/channels < maxFrames {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac: frame: %w", err)
		}
		if len(f.Subframes) < channels {
			return nil, fmt.Errorf("flac: frame has %d subframes, want %d", len(f.Subframes), channels)
		}
		n := len(f.Subframes[0].Samples)
		for c := 1; c < channels; c++ {
			if len(f.Subframes[c].Samples) != n {
				return nil, fmt.Errorf("flac: subframe %d has %d samples, want %d", c, len(f.Subframes[c].Samples), n)
			}
		}
		for i := range n {
			for c := range channels {
				samples = append(samples, float64(f.Subframes[c].Samples[i])/scale)
			}
		}
	}
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}

	return &pcm.Buffer{
		Samples:    samples,
		SampleRate: int(info.SampleRate),
		Channels:   channels,
	}, nil
}
