package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ecosight/ecosight/pkg/audio/codec/wav"
)

func sineWAV(t *testing.T, n, rate int, amp float64) []byte {
	t.Helper()
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	data, err := wav.EncodeBytes(samples, rate)
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	return data
}

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNormalize_Sine(t *testing.T) {
	n := newNormalizer(t)

	sig, err := n.Normalize(sineWAV(t, 48000, 16000, 0.5))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if sig.Len() != 48000 {
		t.Errorf("len = %d, want 48000", sig.Len())
	}
	if sig.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", sig.SampleRate)
	}
	if peak := sig.Peak(); math.Abs(float64(peak)-1) > 1e-6 {
		t.Errorf("peak = %v, want 1.0", peak)
	}
}

func TestNormalize_Truncates(t *testing.T) {
	n := newNormalizer(t)

	sig, err := n.Normalize(sineWAV(t, 16000*10, 16000, 0.3))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if sig.Len() != 64000 {
		t.Errorf("len = %d, want 64000", sig.Len())
	}
}

func TestNormalize_MinSamplesBoundary(t *testing.T) {
	n := newNormalizer(t)

	if _, err := n.Normalize(sineWAV(t, 159, 16000, 0.5)); !errors.Is(err, ErrTooShort) {
		t.Errorf("159 samples: err = %v, want ErrTooShort", err)
	}
	sig, err := n.Normalize(sineWAV(t, 160, 16000, 0.5))
	if err != nil {
		t.Fatalf("160 samples: %v", err)
	}
	if sig.Len() != 160 {
		t.Errorf("len = %d, want 160", sig.Len())
	}
}

func TestNormalize_Silence(t *testing.T) {
	n := newNormalizer(t)

	data, err := wav.EncodeBytes(make([]float32, 16000), 16000)
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	sig, err := n.Normalize(data)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if sig.Len() != 16000 {
		t.Fatalf("len = %d, want 16000", sig.Len())
	}
	for i, v := range sig.Samples {
		if v != 0 || math.IsNaN(float64(v)) {
			t.Fatalf("sample[%d] = %v, want 0", i, v)
		}
	}
}

func TestNormalize_Resamples(t *testing.T) {
	n := newNormalizer(t)

	tests := []struct {
		name    string
		samples int
		rate    int
		want    int
	}{
		{"1s at 44.1kHz", 44100, 44100, 16000},
		{"1s at 48kHz", 48000, 48000, 16000},
		{"3s at 22.05kHz", 66150, 22050, 48000},
		{"20ms at 48kHz", 960, 48000, 320},
		{"11ms at 44.1kHz", 486, 44100, 176},
		{"10s at 48kHz", 480000, 48000, 64000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := n.Normalize(sineWAV(t, tt.samples, tt.rate, 0.25))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if sig.SampleRate != 16000 {
				t.Errorf("SampleRate = %d, want 16000", sig.SampleRate)
			}
			if sig.Len() != tt.want {
				t.Errorf("len = %d, want %d", sig.Len(), tt.want)
			}
			if peak := sig.Peak(); math.Abs(float64(peak)-1) > 1e-6 {
				t.Errorf("peak = %v, want 1.0", peak)
			}
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	n := newNormalizer(t)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmpty},
		{"garbage", []byte("this is not audio"), ErrDecode},
		{"truncated riff", []byte("RIFF\x10\x00\x00\x00WAVEfmt "), ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero rate", Config{SampleRate: 0, MaxDuration: time.Second, MinSamples: 1}, true},
		{"zero duration", Config{SampleRate: 16000, MinSamples: 1}, true},
		{"zero min", Config{SampleRate: 16000, MaxDuration: time.Second}, true},
		{"min beyond window", Config{SampleRate: 100, MaxDuration: time.Second, MinSamples: 101}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizer_MaxSamples(t *testing.T) {
	if got := newNormalizer(t).MaxSamples(); got != 64000 {
		t.Errorf("MaxSamples = %d, want 64000", got)
	}
}
