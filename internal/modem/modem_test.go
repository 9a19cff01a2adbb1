package modem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/audio"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/codec/loopback"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/decoder"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/ptt"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/txqueue"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/wire"
)

func TestTXWorkerTransmitsControlFrame(t *testing.T) {
	q := txqueue.New(4)
	c := loopback.New()
	back := audio.NewLoopbackBackend(4096)
	decoded := make(chan decoder.DecodedFrame, 4)
	dd := decoder.New(c, decoded)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	dd.Run(ctx)

	w := &TXWorker{Queue: q, Keyer: ptt.NullKeyer{}, Audio: back, Codec: c, Decode: dd}
	go w.Run(ctx)

	frame := wire.BuildKeepalive(5, 0)
	require.NoError(t, q.Enqueue(txqueue.Action{Kind: txqueue.TXControl, Frame: frame}))

	samplesOut := make(chan []int16, 1)
	go func() {
		buf := make([]int16, 64)
		n, err := back.ReadSamples(ctx, buf)
		if err == nil && n > 0 {
			samplesOut <- append([]int16{}, buf[:n]...)
		}
	}()

	select {
	case s := <-samplesOut:
		assert.NotEmpty(t, s)
	case <-time.After(time.Second):
		t.Fatal("TXWorker never wrote samples to the audio backend")
	}
}

func TestRXWorkerPublishesKeepaliveEvent(t *testing.T) {
	q := event.NewQueue(4)
	w := &RXWorker{Queue: q, Decoded: make(chan decoder.DecodedFrame, 1)}

	frame := wire.BuildKeepalive(7, 0)
	go w.Run(context.Background())
	w.Decoded <- decoder.DecodedFrame{Mode: modetable.DATAC13, Bytes: frame}

	select {
	case ev := <-q.C():
		assert.Equal(t, event.EvRxKeepalive, ev.ID)
		assert.Equal(t, uint8(7), ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestDecodeFrameRejectsBadCRC(t *testing.T) {
	frame := wire.BuildKeepalive(1, 0)
	frame[3] ^= 0xFF // corrupt the session_id header byte without fixing the CRC
	_, ok := decodeFrame(decoder.DecodedFrame{Bytes: frame}, "")
	assert.False(t, ok)
}

func TestDecodeFrameDropsConnectWithMismatchedDst(t *testing.T) {
	frame, err := wire.BuildCall(3, "W1AW", "N0CALL")
	require.NoError(t, err)
	_, ok := decodeFrame(decoder.DecodedFrame{Bytes: frame}, "K5ABC")
	assert.False(t, ok)
}

func TestDecodeFrameAcceptsConnectAddressedToUs(t *testing.T) {
	frame, err := wire.BuildCall(3, "W1AW", "N0CALL")
	require.NoError(t, err)
	ev, ok := decodeFrame(decoder.DecodedFrame{Bytes: frame}, "W1AW")
	require.True(t, ok)
	assert.Equal(t, event.EvRxCall, ev.ID)
	assert.Equal(t, "N0CALL", ev.RemoteCall)
}
