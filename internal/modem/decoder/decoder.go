// Package decoder runs the dual-decoder receive path spec §4.7 describes:
// one DATAC13 control-channel decoder running permanently alongside one
// payload-mode decoder that follows the session's current PayloadMode,
// honoring the mode-switch cooldown and "forbidden while local TX active"
// rule.
package decoder

import (
	"context"
	"sync"
	"time"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/codec"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
)

// DecodedFrame is one frame the dual decoder produced, tagged with the mode
// it arrived on (the lane itself is not recorded).
type DecodedFrame struct {
	Mode  modetable.Mode
	Bytes []byte
}

// DualDecoder owns a permanent DATAC13 lane and a switchable payload lane.
type DualDecoder struct {
	c   codec.Codec
	out chan DecodedFrame

	mu          sync.Mutex
	payloadMode modetable.Mode
	lastSwitch  time.Time
	txActive    bool

	controlSamples chan []int16
	payloadSamples chan []int16
	payloadCancel  context.CancelFunc
}

// New builds a DualDecoder around codec c, with out as the shared output
// channel for frames decoded on either lane.
func New(c codec.Codec, out chan DecodedFrame) *DualDecoder {
	return &DualDecoder{
		c:              c,
		out:            out,
		payloadMode:    modetable.DATAC4,
		controlSamples: make(chan []int16, 16),
		payloadSamples: make(chan []int16, 16),
	}
}

// Run starts the permanent DATAC13 decoder goroutine and the initial
// payload-mode decoder goroutine, both running until ctx is done.
func (d *DualDecoder) Run(ctx context.Context) {
	go d.c.Demodulate(ctx, modetable.DATAC13, d.controlSamples, controlOut(d.out, modetable.DATAC13))
	d.startPayloadLocked(ctx, d.payloadMode)
}

func controlOut(out chan DecodedFrame, mode modetable.Mode) chan []byte {
	bridge := make(chan []byte, 16)
	go func() {
		for b := range bridge {
			out <- DecodedFrame{Mode: mode, Bytes: b}
		}
	}()
	return bridge
}

func (d *DualDecoder) startPayloadLocked(ctx context.Context, mode modetable.Mode) {
	payloadCtx, cancel := context.WithCancel(ctx)
	d.payloadCancel = cancel
	d.payloadMode = mode
	go d.c.Demodulate(payloadCtx, mode, d.payloadSamples, controlOut(d.out, mode))
}

// SwitchPayloadMode restarts the payload lane under newMode, rejecting the
// switch (returning false) if the cooldown hasn't elapsed or local TX is
// currently active, per spec §4.7.
func (d *DualDecoder) SwitchPayloadMode(ctx context.Context, newMode modetable.Mode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.txActive {
		return false
	}
	if !d.lastSwitch.IsZero() && time.Since(d.lastSwitch) < modetable.ModeSwitchCooldown {
		return false
	}
	if newMode == d.payloadMode {
		return true
	}
	if d.payloadCancel != nil {
		d.payloadCancel()
	}
	d.startPayloadLocked(ctx, newMode)
	d.lastSwitch = time.Now()
	return true
}

// SetTXActive marks whether the local transmitter currently holds the
// channel, gating SwitchPayloadMode per the "forbidden while local TX
// active" rule.
func (d *DualDecoder) SetTXActive(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txActive = active
}

// FeedControl delivers samples to the permanent DATAC13 lane.
func (d *DualDecoder) FeedControl(ctx context.Context, samples []int16) {
	select {
	case d.controlSamples <- samples:
	case <-ctx.Done():
	}
}

// FeedPayload delivers samples to the current payload lane.
func (d *DualDecoder) FeedPayload(ctx context.Context, samples []int16) {
	select {
	case d.payloadSamples <- samples:
	case <-ctx.Done():
	}
}

// PayloadMode reports the payload lane's current mode.
func (d *DualDecoder) PayloadMode() modetable.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payloadMode
}
