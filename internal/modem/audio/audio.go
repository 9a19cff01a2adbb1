// Package audio abstracts the sound card the modem reads/writes samples
// from, replacing the teacher's cgo ALSA binding in src/audio.go
// (audio_open/audio_get_real/audio_put_real) with a portaudio-backed
// stream, since this module links no C audio layer.
package audio

import "context"

// SampleRate is the only rate HERMES modems negotiate against (spec §4.7).
const SampleRate = 8000

// Backend is a duplex audio device: 16-bit signed mono samples in, 16-bit
// signed mono samples out.
type Backend interface {
	// ReadSamples blocks until at least one sample is available or ctx is
	// done, filling as much of buf as is immediately available.
	ReadSamples(ctx context.Context, buf []int16) (int, error)
	// WriteSamples blocks until buf has been queued for playback.
	WriteSamples(ctx context.Context, buf []int16) error
	// Close releases the device.
	Close() error
}
