// Package codec identifies audio containers by their leading bytes and
// decodes them into floating-point PCM.
//
// Supported containers are WAV (integer PCM and float), FLAC and MP3. Ogg is recognized
// so that callers get a precise error, but it is not decoded.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/ecosight/ecosight/pkg/audio/codec/flac"
	"github.com/ecosight/ecosight/pkg/audio/codec/mp3"
	"github.com/ecosight/ecosight/pkg/audio/codec/wav"
	"github.com/ecosight/ecosight/pkg/audio/pcm"
)

// Format is a container format recognized by Detect.
type Format int

const (
	Unknown Format = iota
	WAV
	FLAC
	MP3
	Ogg
)

func (f Format) String() string {
	switch f {
	case WAV:
		return "wav"
	case FLAC:
		return "flac"
	case MP3:
		return "mp3"
	case Ogg:
		return "ogg"
	default:
		return "unknown"
	}
}

var (
	// ErrUnknownFormat is returned when no container signature matches.
	ErrUnknownFormat = errors.New("codec: unknown audio format")

	// ErrUnsupported is returned for recognized containers that cannot be
	// decoded.
	ErrUnsupported = errors.New("codec: unsupported audio format")

	// ErrCorrupt is returned when a decoder fails on malformed input in a
	// way it does not report as an error.
	ErrCorrupt = errors.New("codec: corrupt audio stream")
)

// Detect identifies the container format of data from its signature.
func Detect(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return WAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return Ogg
	case bytes.HasPrefix(data, []byte("ID3")):
		return MP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync (11 set bits).
		return MP3
	}
	return Unknown
}

// Decode detects the container format of data and decodes it. When limit is
// positive, decoding stops after roughly limit worth of leading audio, so the
// cost of a payload is bounded by limit rather than by its length.
func Decode(data []byte, limit time.Duration) (*pcm.Buffer, error) {
	format := Detect(data)
	var decode func([]byte, time.Duration) (*pcm.Buffer, error)
	switch format {
	case WAV:
		decode = wav.Decode
	case FLAC:
		decode = flac.Decode
	case MP3:
		decode = mp3.Decode
	case Ogg:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	default:
		return nil, ErrUnknownFormat
	}

	buf, err := guard(format, func() (*pcm.Buffer, error) { return decode(data, limit) })
	if err != nil {
		return nil, err
	}
	if buf.SampleRate <= 0 || buf.Channels <= 0 {
		return nil, fmt.Errorf("codec: %s stream reports %d Hz, %d channels", format, buf.SampleRate, buf.Channels)
	}
	return buf, nil
}

// guard runs decode and converts a panic inside the third-party decoders
// into ErrCorrupt.
func guard(format Format, decode func() (*pcm.Buffer, error)) (buf *pcm.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %s: %v", ErrCorrupt, format, r)
		}
	}()
	return decode()
}
