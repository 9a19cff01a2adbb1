package decoder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/codec/loopback"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
)

func TestDualDecoderDecodesOnBothLanes(t *testing.T) {
	c := loopback.New()
	out := make(chan DecodedFrame, 4)
	d := New(c, out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Run(ctx)

	controlFrame := []byte{0xC1}
	samples, err := c.Modulate(modetable.DATAC13, controlFrame)
	require.NoError(t, err)
	d.FeedControl(ctx, samples)

	payloadFrame := []byte{0xD1, 0xD2}
	psamples, err := c.Modulate(d.PayloadMode(), payloadFrame)
	require.NoError(t, err)
	d.FeedPayload(ctx, psamples)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case f := <-out:
			seen[string(f.Bytes)] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for decoded frames")
		}
	}
	assert.True(t, seen[string(controlFrame)])
	assert.True(t, seen[string(payloadFrame)])
}

func TestSwitchPayloadModeRejectedDuringTX(t *testing.T) {
	c := loopback.New()
	out := make(chan DecodedFrame, 4)
	d := New(c, out)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Run(ctx)

	d.SetTXActive(true)
	assert.False(t, d.SwitchPayloadMode(ctx, modetable.DATAC3))
	assert.Equal(t, modetable.DATAC4, d.PayloadMode())

	d.SetTXActive(false)
	assert.True(t, d.SwitchPayloadMode(ctx, modetable.DATAC3))
	assert.Equal(t, modetable.DATAC3, d.PayloadMode())
}

func TestSwitchPayloadModeRejectedDuringCooldown(t *testing.T) {
	c := loopback.New()
	out := make(chan DecodedFrame, 4)
	d := New(c, out)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Run(ctx)

	require.True(t, d.SwitchPayloadMode(ctx, modetable.DATAC3))
	assert.False(t, d.SwitchPayloadMode(ctx, modetable.DATAC1), "second switch inside cooldown should be rejected")
}
