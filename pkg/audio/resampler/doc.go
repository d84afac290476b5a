// Package resampler converts floating-point PCM between sample rates using a
// pure Go polyphase resampler.
//
// The inference front end only ever needs one direction (whatever the
// container carries down to the model rate), so the API is a single call over
// a complete clip:
//
//	out, err := resampler.Resample(mono, 44100, 16000)
//
// Resample flushes the filter and compensates its delay, so the result holds
// exactly OutputLen(len(mono), 44100, 16000) samples. Streaming callers use
// New with Process and finish with Flush.
//
// Interleaved multi-channel input is supported through Format.
package resampler
