// Package wav reads and writes RIFF/WAVE files.
//
// Decoding accepts 8, 16, 24 and 32-bit integer PCM and 32 or 64-bit IEEE
// float, either as plain format tags or wrapped in WAVE_FORMAT_EXTENSIBLE,
// with any channel count. Encoding always writes 16-bit mono, which is what
// probes and fixtures need.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ecosight/ecosight/pkg/audio/pcm"
)

// Sentinel errors.
var (
	// ErrInvalid is returned when the payload is not a RIFF/WAVE file.
	ErrInvalid = errors.New("wav: invalid file")

	// ErrUnsupported is returned for encodings other than PCM and float
	// (ADPCM, A-law, ...).
	ErrUnsupported = errors.New("wav: unsupported encoding")
)

// Format tags.
const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// readSamples is the number of samples decoded per read. Blocks are sized in
// samples, not frames, so a bogus channel count cannot inflate them.
const readSamples = 8192

// Decode decodes a WAV payload. When limit is positive, decoding stops once
// limit worth of sample frames has been read.
func Decode(data []byte, limit time.Duration) (*pcm.Buffer, error) {
	d := gowav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, ErrInvalid
	}
	tag := d.WavAudioFormat
	if tag == formatExtensible {
		sub, ok := subFormat(data)
		if !ok {
			return nil, fmt.Errorf("%w: extensible header without sub-format", ErrInvalid)
		}
		tag = sub
	}

	channels := int(d.NumChans)
	rate := int(d.SampleRate)
	depth := int(d.BitDepth)
	if channels <= 0 || rate <= 0 {
		return nil, ErrInvalid
	}
	maxSamples := -1
	if limit > 0 {
		maxSamples = pcm.SamplesIn(limit, rate) * channels
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if d.PCMChunk == nil {
		return nil, ErrInvalid
	}

	var (
		samples []float64
		err     error
	)
	switch tag {
	case formatPCM:
		samples, err = readInt(d, depth, maxSamples)
	case formatFloat:
		samples, err = readFloat(d.PCMChunk, depth, maxSamples)
	default:
		return nil, fmt.Errorf("%w: format tag %#x", ErrUnsupported, tag)
	}
	if err != nil {
		return nil, err
	}
	samples = samples[:len(samples)-len(samples)%channels]

	return &pcm.Buffer{
		Samples:    samples,
		SampleRate: rate,
		Channels:   channels,
	}, nil
}

// readInt decodes integer PCM through the go-audio decoder in blocks.
func readInt(d *gowav.Decoder, depth, maxSamples int) ([]float64, error) {
	if depth < 8 || depth > 32 || depth%8 != 0 {
		return nil, fmt.Errorf("%w: %d-bit integer samples", ErrUnsupported, depth)
	}
	scale := math.Ldexp(1, depth-1)
	block := &audio.IntBuffer{Data: make([]int, readSamples)}

	var out []float64
	for maxSamples < 0 || len(out) < maxSamples {
		n, err := d.PCMBuffer(block)
		if err != nil {
			return nil, fmt.Errorf("wav: read pcm: %w", err)
		}
		if n <= 0 {
			break
		}
		for _, v := range block.Data[:n] {
			if depth == 8 {
				// 8-bit WAV is unsigned with a 128 midpoint.
				out = append(out, float64(v-128)/128.0)
			} else {
				out = append(out, float64(v)/scale)
			}
		}
	}
	if maxSamples >= 0 && len(out) > maxSamples {
		out = out[:maxSamples]
	}
	return out, nil
}

// readFloat decodes little-endian IEEE float samples straight from the data
// chunk. Non-finite samples become 0 and the rest are clamped to [-1, 1].
func readFloat(r io.Reader, depth, maxSamples int) ([]float64, error) {
	var size int
	switch depth {
	case 32:
		size = 4
	case 64:
		size = 8
	default:
		return nil, fmt.Errorf("%w: %d-bit float samples", ErrUnsupported, depth)
	}

	raw := make([]byte, readSamples*size)
	var out []float64
	for maxSamples < 0 || len(out) < maxSamples {
		n, err := io.ReadFull(r, raw)
		for i := 0; i+size <= n; i += size {
			var v float64
			if size == 4 {
				v = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
			} else {
				v = math.Float64frombits(binary.LittleEndian.Uint64(raw[i:]))
			}
			switch {
			case math.IsNaN(v):
				v = 0
			case v > 1:
				v = 1
			case v < -1:
				v = -1
			}
			out = append(out, v)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wav: read pcm: %w", err)
		}
	}
	if maxSamples >= 0 && len(out) > maxSamples {
		out = out[:maxSamples]
	}
	return out, nil
}

// subFormat returns the format tag held in the first two bytes of the
// SubFormat GUID of a WAVE_FORMAT_EXTENSIBLE fmt chunk. go-audio/wav skips
// the extension, so the chunk is located directly in data.
func subFormat(data []byte) (uint16, bool) {
	le := binary.LittleEndian
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int64(le.Uint32(data[off+4:]))
		body := off + 8
		if id == "fmt " {
			// format(2) channels(2) rate(4) bytes/s(4) align(2) bits(2)
			// cbSize(2) validBits(2) channelMask(4) SubFormat(16)
			if size < 40 || body+26 > len(data) {
				return 0, false
			}
			return le.Uint16(data[body+24:]), true
		}
		next := int64(body) + size + size&1
		if next > int64(len(data)) {
			return 0, false
		}
		off = int(next)
	}
	return 0, false
}

// Encode writes samples as a 16-bit mono WAV file. Samples outside [-1, 1]
// are clipped.
func Encode(w io.WriteSeeker, samples []float32, sampleRate int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s) * 32767.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		data[i] = int(math.Round(v))
	}

	enc := gowav.NewEncoder(w, sampleRate, 16, 1, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: close: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into memory.
func EncodeBytes(samples []float32, sampleRate int) ([]byte, error) {
	var f memFile
	if err := Encode(&f, samples, sampleRate); err != nil {
		return nil, err
	}
	return f.buf, nil
}

// memFile is an in-memory io.WriteSeeker; the encoder seeks back to patch
// chunk sizes once the data length is known.
type memFile struct {
	buf []byte
	pos int
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + len(p)
	if end > len(f.buf) {
		f.buf = append(f.buf, make([]byte, end-len(f.buf))...)
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(f.pos)
	case io.SeekEnd:
		base = int64(len(f.buf))
	default:
		return 0, errors.New("wav: invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("wav: negative position")
	}
	f.pos = int(next)
	return next, nil
}
