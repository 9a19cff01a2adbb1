package fsm

import (
	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/session"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/wire"
)

// dispatchLevel1 implements spec §4.4. handled reports whether ev was
// consumed by the connection FSM; when handled is false and the session is
// CONNECTED, Dispatch forwards ev to the data-flow FSM instead.
func dispatchLevel1(cfg *Config, sess *session.Session, ev event.Event) ([]Effect, bool) {
	switch sess.ConnState {
	case session.ConnDisconnected:
		return level1Disconnected(cfg, sess, ev)
	case session.ConnListening:
		return level1Listening(cfg, sess, ev)
	case session.ConnCalling:
		return level1Calling(sess, ev)
	case session.ConnAccepting:
		return level1Accepting(cfg, sess, ev)
	case session.ConnConnected:
		// RX_DISCONNECT / APP_DISCONNECT move to DISCONNECTING; everything
		// else is the data-flow FSM's business.
		if ev.ID == event.EvRxDisconnect || ev.ID == event.EvAppDisconnect {
			return beginDisconnecting(sess, ev.NowMs), true
		}
		return nil, false
	case session.ConnDisconnecting:
		return level1Disconnecting(cfg, sess, ev)
	}
	return nil, false
}

func level1Disconnected(cfg *Config, sess *session.Session, ev event.Event) ([]Effect, bool) {
	switch ev.ID {
	case event.EvAppListen:
		sess.ConnState = session.ConnListening
		return nil, true
	case event.EvAppConnect:
		sess.SessionID = randSessionID()
		sess.Role = session.RoleCaller
		sess.RemoteCall = ev.RemoteCall
		sess.LocalCall = cfg.LocalCall()
		frame, _ := wire.BuildCall(sess.SessionID, sess.RemoteCall, sess.LocalCall)
		armRetry(sess, ev.NowMs, modetable.DATAC13, modetable.CallRetries)
		sess.StateEnterMs = ev.NowMs
		sess.ConnState = session.ConnCalling
		return []Effect{emitControl(frame)}, true
	case event.EvAppStopListen, event.EvAppDataReady:
		return nil, true
	default:
		if isRxEvent(ev.ID) {
			return nil, true // RX_* ignored while disconnected
		}
	}
	return nil, false
}

func level1Listening(cfg *Config, sess *session.Session, ev event.Event) ([]Effect, bool) {
	switch ev.ID {
	case event.EvAppStopListen:
		sess.ConnState = session.ConnDisconnected
		return nil, true
	case event.EvAppConnect:
		return level1Disconnected(cfg, sess, ev)
	case event.EvRxCall:
		// modem.RXWorker's decodeFrame already dropped any CALL whose dst
		// didn't match our callsign, so a RxCall reaching here always
		// addressed cfg.LocalCall; ev.RemoteCall is the caller's src.
		sess.RemoteCall = ev.RemoteCall
		sess.SessionID = ev.SessionID
		sess.Role = session.RoleCallee
		sess.LocalCall = cfg.LocalCall()
		frame, _ := wire.BuildAccept(sess.SessionID, sess.RemoteCall, sess.LocalCall)
		armRetry(sess, ev.NowMs, modetable.DATAC13, modetable.AcceptRetries)
		sess.StateEnterMs = ev.NowMs
		sess.ConnState = session.ConnAccepting
		return []Effect{emitControl(frame)}, true
	default:
		if isRxEvent(ev.ID) {
			return nil, true
		}
	}
	return nil, false
}

func level1Calling(sess *session.Session, ev event.Event) ([]Effect, bool) {
	switch ev.ID {
	case event.EvRxAccept:
		if ev.SessionID != sess.SessionID {
			return nil, true // mismatched session_id: drop, no state change
		}
		return enterConnected(sess, ev), true
	case event.EvTimerRetry:
		if sess.TxRetriesLeft > 0 {
			frame, _ := wire.BuildCall(sess.SessionID, sess.RemoteCall, sess.LocalCall)
			sess.TxRetriesLeft--
			armRetry(sess, ev.NowMs, modetable.DATAC13, sess.TxRetriesLeft)
			return []Effect{emitControl(frame)}, true
		}
		sess.ConnState = session.ConnDisconnected
		sess.ClearDeadline()
		return nil, true
	case event.EvTimerTimeout:
		sess.ConnState = session.ConnDisconnected
		sess.ClearDeadline()
		return nil, true
	case event.EvAppDisconnect:
		sess.ConnState = session.ConnDisconnected
		sess.ClearDeadline()
		return nil, true
	default:
		if isRxEvent(ev.ID) {
			return nil, true
		}
	}
	return nil, false
}

func level1Accepting(cfg *Config, sess *session.Session, ev event.Event) ([]Effect, bool) {
	switch ev.ID {
	case event.EvRxAck, event.EvRxData:
		if ev.SessionID != sess.SessionID {
			return nil, true
		}
		effects := enterConnected(sess, ev)
		if ev.ID == event.EvRxData {
			// the data that completed the handshake still needs Level 2
			// treatment (delivery + ACK); Dispatch will not re-forward it
			// since Level 1 already reported handled, so do it inline.
			effects = append(effects, dispatchLevel2(sess, ev)...)
		}
		return effects, true
	case event.EvTimerRetry:
		if sess.TxRetriesLeft > 0 {
			frame, _ := wire.BuildAccept(sess.SessionID, sess.RemoteCall, sess.LocalCall)
			sess.TxRetriesLeft--
			armRetry(sess, ev.NowMs, modetable.DATAC13, sess.TxRetriesLeft)
			return []Effect{emitControl(frame)}, true
		}
		return exhaustedAccept(cfg, sess), true
	case event.EvTimerTimeout:
		return exhaustedAccept(cfg, sess), true
	default:
		if isRxEvent(ev.ID) {
			return nil, true
		}
	}
	return nil, false
}

func exhaustedAccept(cfg *Config, sess *session.Session) []Effect {
	sess.ClearDeadline()
	if cfg.Listening() {
		sess.ConnState = session.ConnListening
	} else {
		sess.ConnState = session.ConnDisconnected
	}
	return nil
}

func enterConnected(sess *session.Session, ev event.Event) []Effect {
	sess.ConnState = session.ConnConnected
	sess.PayloadMode = modetable.DATAC4
	sess.SpeedIndex = 0
	sess.StartupDlMs = ev.NowMs + modetable.StartupWindow.Milliseconds()
	if sess.Role == session.RoleCaller {
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
	} else {
		enterIdle(sess, ev.NowMs, session.DflowIdleIRS)
	}
	return []Effect{{Kind: EffectNewSession}}
}

func beginDisconnecting(sess *session.Session, nowMs int64) []Effect {
	frame := wire.BuildDisconnect(sess.SessionID, wire.EncodeSNR(float64(sess.LocalSNRx10)/10))
	armRetry(sess, nowMs, modetable.DATAC13, modetable.DisconnectRetries)
	sess.ConnState = session.ConnDisconnecting
	return []Effect{emitControl(frame)}
}

func level1Disconnecting(cfg *Config, sess *session.Session, ev event.Event) ([]Effect, bool) {
	switch ev.ID {
	case event.EvRxDisconnect, event.EvTimerTimeout:
		return finishDisconnect(cfg, sess), true
	case event.EvTimerRetry:
		if sess.TxRetriesLeft > 0 {
			frame := wire.BuildDisconnect(sess.SessionID, wire.EncodeSNR(float64(sess.LocalSNRx10)/10))
			sess.TxRetriesLeft--
			armRetry(sess, ev.NowMs, modetable.DATAC13, sess.TxRetriesLeft)
			return []Effect{emitControl(frame)}, true
		}
		return finishDisconnect(cfg, sess), true
	default:
		if isRxEvent(ev.ID) {
			return nil, true
		}
	}
	return nil, false
}

func finishDisconnect(cfg *Config, sess *session.Session) []Effect {
	toNoClient := sess.TeardownToNoClient
	sess.Reset()
	if toNoClient || !cfg.Listening() {
		sess.ConnState = session.ConnDisconnected
	} else {
		sess.ConnState = session.ConnListening
	}
	return []Effect{{Kind: EffectSessionClosed}}
}

func isRxEvent(id event.EventID) bool {
	switch id {
	case event.EvRxCall, event.EvRxAccept, event.EvRxAck, event.EvRxData,
		event.EvRxDisconnect, event.EvRxTurnReq, event.EvRxTurnAck,
		event.EvRxModeReq, event.EvRxModeAck, event.EvRxKeepalive, event.EvRxKeepaliveAck:
		return true
	}
	return false
}
