package loopback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
)

func TestModulateDemodulateRoundTrip(t *testing.T) {
	c := New()
	frame := []byte{0x01, 0x02, 0x03, 0xAB, 0xCD}

	samples, err := c.Modulate(modetable.DATAC1, frame)
	require.NoError(t, err)

	samplesCh := make(chan []int16, 1)
	out := make(chan []byte, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go c.Demodulate(ctx, modetable.DATAC1, samplesCh, out)
	samplesCh <- samples

	select {
	case got := <-out:
		assert.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for demodulated frame")
	}
}

func TestDemodulateHandlesSplitChunks(t *testing.T) {
	c := New()
	frame := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	samples, err := c.Modulate(modetable.DATAC4, frame)
	require.NoError(t, err)
	require.True(t, len(samples) > 2)

	samplesCh := make(chan []int16, 2)
	out := make(chan []byte, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go c.Demodulate(ctx, modetable.DATAC4, samplesCh, out)
	mid := len(samples) / 2
	samplesCh <- samples[:mid]
	samplesCh <- samples[mid:]

	select {
	case got := <-out:
		assert.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for demodulated frame")
	}
}
