// Package mp3 decodes MPEG-1/2 Layer III audio into floating-point PCM.
//
// Decoding uses go-mp3, a pure Go decoder. The decoder always emits
// interleaved 16-bit stereo; mono sources are duplicated into both channels.
package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ecosight/ecosight/pkg/audio/pcm"
)

// ErrNoAudio is returned when the stream decodes to zero samples.
var ErrNoAudio = errors.New("mp3: no audio frames")

// channels is fixed by go-mp3's output format.
const channels = 2

// bytesPerFrame is one interleaved int16 stereo frame.
const bytesPerFrame = channels * 2

// Decoder reads decoded PCM from an MP3 stream.
type Decoder struct {
	dec *gomp3.Decoder
}

// NewDecoder creates a decoder reading from r. The first frame is parsed
// eagerly so that malformed input fails here rather than on Read.
//
// r is read sequentially. A seekable r is not scanned up front for its
// length.
func NewDecoder(r io.Reader) (*Decoder, error) {
	dec, err := gomp3.NewDecoder(struct{ io.Reader }{r})
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// SampleRate returns the sample rate of the stream in Hz.
func (d *Decoder) SampleRate() int {
	return d.dec.SampleRate()
}

// Channels returns the number of interleaved output channels.
func (d *Decoder) Channels() int {
	return channels
}

// Read reads interleaved little-endian int16 samples into p.
func (d *Decoder) Read(p []byte) (int, error) {
	return d.dec.Read(p)
}

// Decode decodes an MP3 payload. When limit is positive, decoding stops once
// limit worth of sample frames has been produced.
func Decode(data []byte, limit time.Duration) (*pcm.Buffer, error) {
	d, err := NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var r io.Reader = d
	if limit > 0 {
		r = io.LimitReader(d, int64(pcm.SamplesIn(limit, d.SampleRate()))*bytesPerFrame)
	}
	raw, err := io.ReadAll(r)
	if err != nil && len(raw) == 0 {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	n := len(raw) / 2
	n -= n % channels
	if n == 0 {
		return nil, ErrNoAudio
	}
	samples := make([]float64, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	return &pcm.Buffer{
		Samples:    samples,
		SampleRate: d.SampleRate(),
		Channels:   channels,
	}, nil
}
