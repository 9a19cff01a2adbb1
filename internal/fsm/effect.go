// Package fsm implements the two nested ARQ state machines — the
// connection FSM (Level 1, spec §4.4) and the data-flow FSM (Level 2,
// spec §4.5) — as one switch function per state that mutates the Session and
// returns data Effect values instead of performing any I/O itself, so the
// event loop carries out every action. States and events are
// named after original_source/datalink_arq/arq_fsm.h's arq_conn_state_t /
// arq_dflow_state_t / arq_event_id_t, translated to Go idiom.
package fsm

import (
	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
)

// EffectKind tags the variant of an Effect.
type EffectKind uint8

const (
	EffectEmitControl  EffectKind = iota // send a control-mode frame (EmitBytes, non-nil)
	EffectEmitPayload                    // send a payload-mode frame (EmitBytes, non-nil)
	EffectSwitchMode                     // request the modem switch to Mode before the next send
	EffectDeliverRx                      // deliver Payload to the RX (TCP) side
	EffectSelfPost                       // dispatch SelfEvent inline, right after the current event (e.g. DATA_READY chaining)
	EffectInternalEvent                  // dispatch a synthesized SelfEvent inline, right after the current event (keepalive-miss -> disconnect)
	EffectNewSession                     // session entered CONNECTED; the sink reports CONNECTED to the control client
	EffectSessionClosed                  // session torn down; caches/timers should be released
)

// Effect is one side effect the event loop must carry out after a
// transition. Fields are populated per Kind; unused fields are zero.
type Effect struct {
	Kind EffectKind

	EmitBytes []byte
	Mode      modetable.Mode
	Payload   []byte
	SelfEvent *event.Event
}

func emitControl(b []byte) Effect { return Effect{Kind: EffectEmitControl, EmitBytes: b} }
func emitPayload(b []byte) Effect { return Effect{Kind: EffectEmitPayload, EmitBytes: b} }
func switchMode(m modetable.Mode) Effect { return Effect{Kind: EffectSwitchMode, Mode: m} }
func deliverRx(p []byte) Effect   { return Effect{Kind: EffectDeliverRx, Payload: p} }
func selfPost(ev event.Event) Effect {
	e := ev
	return Effect{Kind: EffectSelfPost, SelfEvent: &e}
}
