// Package audio is the umbrella for the audio front end.
//
// Sub-packages:
//
//   - pcm: floating-point sample containers (Buffer, Signal)
//   - codec: container sniffing and decoding (wav, flac, mp3)
//   - resampler: sample rate conversion
//   - normalize: raw bytes to a bounded, peak-normalized 16 kHz mono Signal
//   - fbank: log mel filterbank frames
//
// Example usage:
//
//	n, _ := normalize.New(normalize.DefaultConfig())
//	sig, err := n.Normalize(data)
package audio
