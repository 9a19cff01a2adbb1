// Package codec defines the boundary between the ARQ data-link and the
// DATAC waveform modulator/demodulator. The real HERMES modem delegates
// this to an external OFDM codec (codec2/FreeDV's datac modes); no pure-Go
// implementation of that waveform exists in the example pack, so this
// package only fixes the interface and ships a deterministic loopback
// implementation used by tests and by hermesd, which wires no other Codec. Production
// deployments bind a real Codec via cgo or a subprocess bridge, which is
// out of scope for this module (see DESIGN.md).
package codec

import (
	"context"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
)

// Codec modulates/demodulates one mode's waveform over a sample stream.
// An implementation owns no session state; the caller re-invokes Modulate
// per outgoing frame and reads Demodulate's channel for whatever frames
// arrive. This mirrors the FreeDV-style soft-modem contract HERMES treats
// as an external collaborator (see DESIGN.md): modulate/demodulate plus
// the sync and SNR introspection the dual decoder needs to pick a
// receive-mode winner and feed timing.Recorder.
type Codec interface {
	// Modulate renders frame (an 8-byte header or a HasData payload
	// frame) as mode's waveform, returning 16-bit mono samples at
	// audio.SampleRate.
	Modulate(mode modetable.Mode, frame []byte) ([]int16, error)

	// Demodulate consumes samples and emits any complete decoded frames
	// for mode on out. It runs until ctx is done.
	Demodulate(ctx context.Context, mode modetable.Mode, samples <-chan []int16, out chan<- []byte) error

	// SyncEstimate reports whether mode's decoder currently believes it
	// is frame-synchronized to an incoming signal.
	SyncEstimate(mode modetable.Mode) bool

	// SNR reports the most recent SNR estimate in dB for mode, valid
	// only when SyncEstimate(mode) is true.
	SNR(mode modetable.Mode) float64

	// NominalModes lists the modes this Codec instance is prepared to
	// decode concurrently (the dual-decoder's DATAC13 + payload-mode
	// pair).
	NominalModes() []modetable.Mode
}
