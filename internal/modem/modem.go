// Package modem wires the audio device, PTT keyer, soft-modem codec, and
// dual decoder into the two worker goroutines spec §4.7 and §5 describe:
// TXWorker drains internal/txqueue and keys the transmitter; RXWorker
// pumps captured audio into the dual decoder and republishes decoded
// frames as internal/event.Event values for the core loop to consume.
package modem

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/bridge"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/fsm"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/audio"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/codec"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/decoder"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/ptt"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/timing"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/txqueue"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/wire"
)

// rxChunkSamples is how many samples RXWorker reads per audio.Backend
// call, matching the portaudio backend's framesPerBuffer period.
const rxChunkSamples = 800

// TXWorker dequeues txqueue.Action entries, brackets each transmission
// with PTT key/unkey, and modulates the frame through the codec before
// writing it to the audio device.
type TXWorker struct {
	Queue  *txqueue.Queue
	Events *event.Queue  // posts TX_STARTED/TX_COMPLETE back to the core loop
	Status chan<- string // PTT ON/OFF lines for the control socket, may be nil
	Keyer  ptt.Keyer
	Audio  audio.Backend
	Codec  codec.Codec
	Decode *decoder.DualDecoder
	Rec    *timing.Recorder
	Log    *log.Logger
}

// Run drains the TX queue until ctx is done.
func (w *TXWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Queue.Notify():
		}
		for {
			act, ok := w.Queue.Dequeue()
			if !ok {
				break
			}
			if err := w.transmit(ctx, act); err != nil && w.Log != nil {
				w.Log.Error("tx failed", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (w *TXWorker) transmit(ctx context.Context, act txqueue.Action) error {
	if act.Kind == txqueue.ModeSwitch {
		w.Decode.SwitchPayloadMode(ctx, act.Mode)
		return nil
	}

	mode := modetable.DATAC13
	if act.Kind == txqueue.TXPayload {
		mode = w.Decode.PayloadMode()
	}

	samples, err := w.Codec.Modulate(mode, act.Frame)
	if err != nil {
		return err
	}

	w.Decode.SetTXActive(true)
	defer w.Decode.SetTXActive(false)

	if w.Events != nil {
		w.Events.Push(event.Event{ID: event.EvTxStarted, Mode: mode})
	}

	if w.Keyer != nil {
		if err := w.Keyer.Key(ctx); err != nil {
			return err
		}
		defer w.Keyer.Unkey(ctx)
	}
	w.sendStatus(bridge.StatusPTTOn)
	defer w.sendStatus(bridge.StatusPTTOff)

	if w.Rec != nil {
		w.Rec.RecordTxStart(time.Now().UnixMilli())
	}
	err = w.Audio.WriteSamples(ctx, samples)
	if w.Rec != nil {
		w.Rec.RecordTxEnd(time.Now().UnixMilli(), len(act.Frame))
	}
	if w.Events != nil {
		w.Events.Push(event.Event{ID: event.EvTxComplete, Mode: mode})
	}
	return err
}

func (w *TXWorker) sendStatus(line string) {
	if w.Status == nil {
		return
	}
	select {
	case w.Status <- line:
	default:
	}
}

// RXWorker continuously captures audio and feeds it to both decoder
// lanes, translating decoded frames into internal/event.Event values for
// the core loop's queue.
type RXWorker struct {
	Audio   audio.Backend
	Decode  *decoder.DualDecoder
	Decoded chan decoder.DecodedFrame
	Queue   *event.Queue
	Cfg     *fsm.Config // read for LocalCall, so a MYCALL update is picked up without re-wiring
	Log     *log.Logger
}

// Run captures audio and republishes decoded frames until ctx is done.
func (w *RXWorker) Run(ctx context.Context) {
	go w.pump(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-w.Decoded:
			w.publish(frame)
		}
	}
}

func (w *RXWorker) pump(ctx context.Context) {
	buf := make([]int16, rxChunkSamples)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := w.Audio.ReadSamples(ctx, buf)
		if err != nil {
			if w.Log != nil {
				w.Log.Error("rx read failed", "err", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		sample := append([]int16{}, buf[:n]...)
		w.Decode.FeedControl(ctx, sample)
		w.Decode.FeedPayload(ctx, sample)
	}
}

// publish decodes frame's wire bytes and pushes the matching FSM event, per
// spec §4.1's RX dispatch table. A CRC failure or unrecognized subtype is a
// silent drop, never an event.
func (w *RXWorker) publish(frame decoder.DecodedFrame) {
	var localCall string
	if w.Cfg != nil {
		localCall = w.Cfg.LocalCall()
	}
	ev, ok := decodeFrame(frame, localCall)
	if !ok {
		return
	}
	if ev.ID != event.EvRxModeReq && ev.ID != event.EvRxModeAck {
		ev.Mode = frame.Mode // MODE_REQ/MODE_ACK keep the mode byte decodeFrame parsed
	}
	w.Queue.Push(ev)
}

// decodeFrame parses frame's wire bytes into an FSM event. localCall gates
// CALL/ACCEPT frames: spec §4.4 requires a CALL addressed to someone else be
// ignored silently, so a dst mismatch here is reported the same as a CRC
// failure (no event at all) rather than forwarded to Level 1.
func decodeFrame(frame decoder.DecodedFrame, localCall string) (event.Event, bool) {
	if len(frame.Bytes) == wire.ConnectFrameSize {
		cf, err := wire.ParseConnect(frame.Bytes)
		if err == nil {
			if cf.Dst != localCall {
				return event.Event{}, false
			}
			id := event.EvRxCall
			if cf.IsAccept {
				id = event.EvRxAccept
			}
			return event.Event{ID: id, RemoteCall: cf.Src, SessionID: cf.SessionID}, true
		}
	}

	h, err := wire.DecodeHeader(frame.Bytes)
	if err != nil {
		return event.Event{}, false
	}

	base := event.Event{SessionID: h.SessionID, RxFlags: uint8(h.Flags), SNRRaw: h.SNRRaw}
	switch h.Subtype {
	case wire.SubtypeAck:
		base.ID = event.EvRxAck
		base.AckSeq = h.RxAckSeq
		base.AckDelay = h.AckDelayRaw
		return base, true
	case wire.SubtypeData:
		base.ID = event.EvRxData
		base.Seq = h.TxSeq
		base.AckSeq = h.RxAckSeq
		base.Payload = frame.Bytes[wire.HeaderSize:]
		return base, true
	case wire.SubtypeDisconnect:
		base.ID = event.EvRxDisconnect
		return base, true
	case wire.SubtypeTurnReq:
		base.ID = event.EvRxTurnReq
		base.AckSeq = h.RxAckSeq
		return base, true
	case wire.SubtypeTurnAck:
		base.ID = event.EvRxTurnAck
		return base, true
	case wire.SubtypeModeReq:
		base.ID = event.EvRxModeReq
		if len(frame.Bytes) > wire.HeaderSize {
			base.Mode = modetable.Mode(frame.Bytes[wire.HeaderSize])
		}
		return base, true
	case wire.SubtypeModeAck:
		base.ID = event.EvRxModeAck
		if len(frame.Bytes) > wire.HeaderSize {
			base.Mode = modetable.Mode(frame.Bytes[wire.HeaderSize])
		}
		return base, true
	case wire.SubtypeKeepalive:
		base.ID = event.EvRxKeepalive
		return base, true
	case wire.SubtypeKeepaliveAck:
		base.ID = event.EvRxKeepaliveAck
		return base, true
	}
	return event.Event{}, false
}
