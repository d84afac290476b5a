// Package pcm provides floating-point PCM containers and the sample-level
// operations shared by the audio front end.
//
// Key types:
//   - Buffer: decoded, interleaved multi-channel audio straight from a codec
//   - Signal: mono float32 audio at a fixed sample rate, the form consumed by
//     embedding extractors
//
// Example usage:
//
//	buf, _ := codec.Decode(data, 0)
//	mono := buf.Mono()
//	sig := pcm.NewSignal(mono, buf.SampleRate)
//	sig = sig.Truncate(pcm.SamplesIn(4*time.Second, sig.SampleRate))
//	sig = sig.PeakNormalize()
package pcm
