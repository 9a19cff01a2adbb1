// Package loopback implements codec.Codec without any waveform at all:
// Modulate packs a frame into a sample buffer's byte representation, and
// Demodulate unpacks it straight back, so the rest of the stack (FSM,
// timing, bridge) can be exercised deterministically without an audio
// device or a real DATAC modem attached.
package loopback

import (
	"context"
	"encoding/binary"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
)

// Codec is the deterministic codec.Codec implementation.
type Codec struct{}

// New returns a ready-to-use loopback Codec.
func New() *Codec { return &Codec{} }

// SyncEstimate always reports synchronized: the loopback codec has no
// notion of a channel, so there is nothing to lose sync with.
func (Codec) SyncEstimate(mode modetable.Mode) bool { return true }

// SNR reports a fixed, generous value since there is no real channel
// noise to measure.
func (Codec) SNR(mode modetable.Mode) float64 { return 20.0 }

// NominalModes reports every mode the table defines; the loopback codec
// decodes all of them identically.
func (Codec) NominalModes() []modetable.Mode {
	return []modetable.Mode{modetable.DATAC13, modetable.DATAC4, modetable.DATAC3, modetable.DATAC1}
}

// frameMarker prefixes every encoded sample buffer so Demodulate can find
// frame boundaries in a shared sample stream.
const frameMarker = 0x4845 // "HE"

// Modulate packs len(frame) and frame's bytes two-to-a-sample (big-endian),
// preceded by frameMarker and a length sample. It ignores mode: the
// loopback codec carries bytes verbatim regardless of which DATAC speed
// the FSM believes it is using.
func (Codec) Modulate(mode modetable.Mode, frame []byte) ([]int16, error) {
	padded := frame
	if len(padded)%2 != 0 {
		padded = append(append([]byte{}, padded...), 0)
	}
	samples := make([]int16, 0, 2+len(padded)/2)
	samples = append(samples, frameMarker, int16(len(frame)))
	for i := 0; i < len(padded); i += 2 {
		samples = append(samples, int16(binary.BigEndian.Uint16(padded[i:i+2])))
	}
	return samples, nil
}

// Demodulate scans samples for frameMarker, reassembles the following
// length-prefixed payload, and posts it to out. It returns when ctx is
// cancelled or samples is closed.
func (Codec) Demodulate(ctx context.Context, mode modetable.Mode, samples <-chan []int16, out chan<- []byte) error {
	var pending []int16
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-samples:
			if !ok {
				return nil
			}
			pending = append(pending, chunk...)
			for {
				frame, rest, ok := extractFrame(pending)
				if !ok {
					break
				}
				pending = rest
				select {
				case out <- frame:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func extractFrame(buf []int16) (frame []byte, rest []int16, ok bool) {
	for i := 0; i < len(buf); i++ {
		if buf[i] != frameMarker {
			continue
		}
		if i+1 >= len(buf) {
			return nil, buf[i:], false
		}
		n := int(buf[i+1])
		need := (n + 1) / 2
		if i+2+need > len(buf) {
			return nil, buf[i:], false
		}
		out := make([]byte, 0, n)
		for j := 0; j < need; j++ {
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(buf[i+2+j]))
			out = append(out, b[:]...)
		}
		return out[:n], buf[i+2+need:], true
	}
	return nil, nil, false
}
