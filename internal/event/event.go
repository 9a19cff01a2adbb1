// Package event holds the ARQ Event type, EventID enum, and the bounded
// drop-newest EventQueue shared between internal/core (the loop) and
// internal/fsm (the dispatcher), kept in their own package so the two can
// depend on it without depending on each other. Grounded on
// original_source/datalink_arq/arq_fsm.h's arq_event_t/arq_event_id_t and
// original_source/datalink_arq/arq_channels.h's bounded channel bus, adapted
// to Go channels instead of the C chan_t primitive.
package event

import "github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"

// EventID names one of the 23 event variants spec §4.3 lists, matching
// arq_event_id_t 1:1 so the FSM tables read the same as the original design.
type EventID uint8

const (
	EvAppListen EventID = iota
	EvAppStopListen
	EvAppConnect
	EvAppDisconnect
	EvAppDataReady

	EvRxCall
	EvRxAccept
	EvRxAck
	EvRxData
	EvRxDisconnect
	EvRxTurnReq
	EvRxTurnAck
	EvRxModeReq
	EvRxModeAck
	EvRxKeepalive
	EvRxKeepaliveAck

	EvTimerRetry
	EvTimerTimeout
	EvTimerAck
	EvTimerPeerBacklog
	EvTimerKeepalive

	EvTxStarted
	EvTxComplete
)

var eventNames = [...]string{
	"APP_LISTEN", "APP_STOP_LISTEN", "APP_CONNECT", "APP_DISCONNECT", "APP_DATA_READY",
	"RX_CALL", "RX_ACCEPT", "RX_ACK", "RX_DATA", "RX_DISCONNECT", "RX_TURN_REQ",
	"RX_TURN_ACK", "RX_MODE_REQ", "RX_MODE_ACK", "RX_KEEPALIVE", "RX_KEEPALIVE_ACK",
	"TIMER_RETRY", "TIMER_TIMEOUT", "TIMER_ACK", "TIMER_PEER_BACKLOG", "TIMER_KEEPALIVE",
	"TX_STARTED", "TX_COMPLETE",
}

func (e EventID) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "UNKNOWN_EVENT"
}

// Event is the single struct type carrying every field any variant needs;
// unused fields are left zero, per spec §4.3's "each carrying the fields it
// needs (others unset)".
type Event struct {
	ID EventID

	RemoteCall string // APP_CONNECT, RX_CALL, RX_ACCEPT
	SessionID  uint8  // all RX_* events

	Seq      uint8 // RX_DATA
	AckSeq   uint8 // RX_ACK
	RxFlags  uint8 // RX_ACK, RX_DATA: wire.Flags as raw byte
	SNRRaw   uint8 // RX_ACK, RX_DATA
	AckDelay uint8 // RX_ACK raw wire byte

	Mode modetable.Mode // RX_MODE_REQ, RX_MODE_ACK, TX_STARTED, TX_COMPLETE

	Payload []byte // RX_DATA

	NowMs int64 // stamped by the loop at dispatch time
}
