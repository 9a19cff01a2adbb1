package core

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/fsm"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/session"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/timing"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/txqueue"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/wire"
)

// maxWait bounds how long a single select iteration may block even with no
// armed deadline, per spec §4.6's "min(any pending timer deadline, 500ms)".
const maxWait = 500 * time.Millisecond

// Effects is a sink the loop hands fsm.Effect values to; Loop itself never
// touches the modem or TCP layers directly, matching the teacher's pattern
// of thin workers fed by channels.
type Effects interface {
	Apply(eff fsm.Effect)
}

// Loop is the single-goroutine ARQ event loop described in spec §4.6.
type Loop struct {
	cfg     *fsm.Config
	sess    *session.Session
	queue   *event.Queue
	effects Effects
	rec     *timing.Recorder
	log     *log.Logger
	now     func() int64
}

// NewLoop builds a Loop. now supplies the monotonic clock in milliseconds
// (injected so tests can control time deterministically).
func NewLoop(cfg *fsm.Config, sess *session.Session, queue *event.Queue, effects Effects, rec *timing.Recorder, logger *log.Logger, now func() int64) *Loop {
	return &Loop{cfg: cfg, sess: sess, queue: queue, effects: effects, rec: rec, log: logger, now: now}
}

// Run drains events and armed timers until ctx is cancelled, per spec §4.6's
// four-step iteration.
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for {
		wait := maxWait
		if l.sess.HasDeadline() {
			remain := time.Duration(l.sess.DeadlineMs-l.now()) * time.Millisecond
			if remain < 0 {
				remain = 0
			}
			if remain < wait {
				wait = remain
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case ev := <-l.queue.C():
			l.drain(ev)
		case <-timer.C:
			l.fireDeadline()
		}
	}
}

// drain dispatches ev and then greedily pulls any further events already
// queued, matching step 3's "drain all pending events in arrival order".
func (l *Loop) drain(first event.Event) {
	l.dispatch(first)
	for {
		select {
		case ev := <-l.queue.C():
			l.dispatch(ev)
		default:
			return
		}
	}
}

func (l *Loop) dispatch(ev event.Event) {
	ev.NowMs = l.now()
	if ev.ID == event.EvRxData && l.rec != nil {
		l.rec.RecordDataRx(ev.NowMs, len(ev.Payload))
	}
	if ev.ID == event.EvAppDataReady && l.sess.Out != nil {
		// the TCP ingress goroutine wrote directly into Out (it
		// synchronizes internally); Session fields are the loop's alone,
		// so only the loop itself may refresh the cached backlog count.
		l.sess.TxBacklogBytes = l.sess.Out.Len()
	}
	effects := fsm.Dispatch(l.cfg, l.sess, ev)
	for _, eff := range effects {
		if (eff.Kind == fsm.EffectInternalEvent || eff.Kind == fsm.EffectSelfPost) && eff.SelfEvent != nil {
			l.dispatch(*eff.SelfEvent)
			continue
		}
		l.patchAckDelay(eff)
		if l.effects != nil {
			l.effects.Apply(eff)
		}
	}
}

// patchAckDelay fills in the real ack_delay_raw byte on an outgoing ACK
// frame. The FSM builds ACK frames with a zero placeholder (it has no clock
// or Recorder access by design); by the time the frame reaches here the
// loop knows exactly how long it sat between DATA arrival and this dispatch,
// so it patches the frame in place before handing it to the TX side.
func (l *Loop) patchAckDelay(eff fsm.Effect) {
	if eff.Kind != fsm.EffectEmitControl || l.rec == nil || len(eff.EmitBytes) != wire.HeaderSize {
		return // ACK frames are exactly HeaderSize; a CONNECT frame's byte 1 is its session_id
	}
	hdr, err := wire.DecodeHeader(eff.EmitBytes)
	if err != nil || hdr.Subtype != wire.SubtypeAck {
		return
	}
	delayMs := l.rec.RecordAckTx(l.now())
	wire.PatchAckDelay(eff.EmitBytes, wire.EncodeAckDelay(uint32(delayMs)))
}

// fireDeadline synthesises the timer event tagged by the session's armed
// DeadlineEvent, per spec §4.6 step 4.
func (l *Loop) fireDeadline() {
	if !l.sess.HasDeadline() {
		return
	}
	if l.now() < l.sess.DeadlineMs {
		return // woken early by maxWait, not an actual expiry
	}
	var id event.EventID
	switch l.sess.DeadlineEvent {
	case session.DeadlineRetry:
		id = event.EvTimerRetry
	case session.DeadlineTimeout:
		id = event.EvTimerTimeout
	case session.DeadlineAck:
		id = event.EvTimerAck
	case session.DeadlinePeerBacklog:
		id = event.EvTimerPeerBacklog
	case session.DeadlineKeepalive:
		id = event.EvTimerKeepalive
	default:
		return
	}
	l.dispatch(event.Event{ID: id})
}

// ActionFor is a convenience Effects adapter most wiring code shares: turn
// an EmitControl/EmitPayload effect into a txqueue.Action.
func ActionFor(eff fsm.Effect) (txqueue.Action, bool) {
	switch eff.Kind {
	case fsm.EffectEmitControl:
		return txqueue.Action{Kind: txqueue.TXControl, Frame: eff.EmitBytes}, true
	case fsm.EffectEmitPayload:
		return txqueue.Action{Kind: txqueue.TXPayload, Frame: eff.EmitBytes}, true
	case fsm.EffectSwitchMode:
		return txqueue.Action{Kind: txqueue.ModeSwitch, Mode: eff.Mode}, true
	}
	return txqueue.Action{}, false
}
