package fsm

import (
	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/session"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/wire"
)

// dispatchLevel2 implements spec §4.5. Only called while
// sess.ConnState == ConnConnected.
func dispatchLevel2(sess *session.Session, ev event.Event) []Effect {
	switch sess.DflowState {
	case session.DflowIdleISS:
		return dflowIdleISS(sess, ev)
	case session.DflowDataTX:
		return dflowDataTX(sess, ev)
	case session.DflowWaitAck:
		return dflowWaitAck(sess, ev)
	case session.DflowIdleIRS:
		return dflowIdleIRS(sess, ev)
	case session.DflowDataRX:
		return nil // transient; entered and left within the same dispatch
	case session.DflowAckTX:
		return dflowAckTX(sess, ev)
	case session.DflowTurnReqTX:
		return dflowTurnReqTX(sess, ev)
	case session.DflowTurnReqWait:
		return dflowTurnReqWait(sess, ev)
	case session.DflowTurnAckTX:
		return dflowTurnAckTX(sess, ev)
	case session.DflowModeReqTX:
		return dflowModeReqTX(sess, ev)
	case session.DflowModeReqWait:
		return dflowModeReqWait(sess, ev)
	case session.DflowModeAckTX:
		return dflowModeAckTX(sess, ev)
	case session.DflowKeepaliveTX:
		return dflowKeepaliveTX(sess, ev)
	case session.DflowKeepaliveWait:
		return dflowKeepaliveWait(sess, ev)
	}
	return nil
}

func currentSNRRaw(sess *session.Session) uint8 {
	return wire.EncodeSNR(float64(sess.LocalSNRx10) / 10)
}

// enterIdle transitions into IDLE_ISS or IDLE_IRS and arms the keepalive
// deadline, so a connection with no traffic still sends KEEPALIVE every
// modetable.KeepaliveInterval per spec §4.5's idle-keepalive rule. Every idle
// entry point clears any prior deadline first, so this never clobbers a
// deadline still in use by another state.
func enterIdle(sess *session.Session, nowMs int64, state session.DflowState) {
	sess.DflowState = state
	sess.ArmDeadline(nowMs+modetable.KeepaliveInterval.Milliseconds(), session.DeadlineKeepalive)
}

// dflowIdleISS: DATA_READY with outbound bytes present and not in the
// startup-gate-block peeks up to payload_bytes(mode) (the bytes are drained
// from Out only when their ACK arrives), wraps a DATA frame, enqueues
// TX_PAYLOAD, DATA_TX.
func dflowIdleISS(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvAppDataReady:
		if sess.TxBacklogBytes <= 0 {
			return nil
		}
		if sess.StartupAcksSeen < modetable.StartupAcksNeeded && ev.NowMs < sess.StartupDlMs {
			return nil // startup-gate-block: wait for the window or the needed ACKs
		}
		t := modetable.Lookup(sess.PayloadMode)
		n := t.PayloadBytes
		if sess.TxBacklogBytes < n {
			n = sess.TxBacklogBytes
		}
		payload := sess.Out.Peek(n)
		sess.TxPending = payload
		flags := wire.Flags(0)
		if sess.PeerHasData {
			flags |= wire.FlagHasData
		}
		frame := wire.BuildData(sess.SessionID, sess.TxSeq, sess.RxExpected-1, flags, currentSNRRaw(sess), payload)
		sess.OutstandSeq = sess.TxSeq
		sess.TxRetriesLeft = modetable.DataRetries
		sess.DflowState = session.DflowDataTX
		return []Effect{emitPayload(frame)}
	case event.EvRxTurnReq:
		return turnAckThenISS(sess)
	}
	return keepaliveCommon(sess, ev)
}

func dflowDataTX(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvTxStarted:
		return nil // tx_start_ms recorded by the caller via timing.Recorder
	case event.EvTxComplete:
		t := modetable.Lookup(sess.PayloadMode)
		sess.ArmDeadline(ev.NowMs+t.AckTimeout.Milliseconds(), session.DeadlineAck)
		sess.DflowState = session.DflowWaitAck
	}
	return nil
}

func dflowWaitAck(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvRxAck:
		if ev.AckSeq != sess.OutstandSeq {
			return nil
		}
		drained := sess.Out.Drain(len(sess.TxPending))
		sess.TxBacklogBytes -= len(drained)
		sess.TxPending = nil
		sess.TxSeq++
		sess.PeerSNRx10 = int(wire.DecodeSNR(ev.SNRRaw) * 10)
		sess.ModeDowngradeCount = 0
		sess.ClearDeadline()
		if modeEffects := evaluateModeLadder(sess, ev.NowMs); modeEffects != nil {
			return modeEffects
		}
		if sess.TxBacklogBytes > 0 {
			enterIdle(sess, ev.NowMs, session.DflowIdleISS)
			return []Effect{selfPost(event.Event{ID: event.EvAppDataReady, NowMs: ev.NowMs})}
		}
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
		return nil
	case event.EvRxData:
		if ev.RxFlags&uint8(wire.FlagHasData) != 0 {
			sess.PeerHasData = true
		}
		return nil // stay; bidirectional piggyback handled by next ACK we send
	case event.EvTimerAck:
		sess.ModeDowngradeCount++
		if candidate, ok := nextDowngradeCandidate(sess); ok {
			return requestModeSwitch(sess, candidate)
		}
		if sess.TxRetriesLeft > 0 {
			flags := wire.Flags(0)
			if sess.PeerHasData {
				flags |= wire.FlagHasData
			}
			payload := sess.TxPending // same bytes as the original send; not yet drained from Out
			frame := wire.BuildData(sess.SessionID, sess.OutstandSeq, sess.RxExpected-1, flags, currentSNRRaw(sess), payload)
			sess.TxRetriesLeft--
			sess.DflowState = session.DflowDataTX
			return []Effect{emitPayload(frame)}
		}
		return beginDisconnecting(sess, ev.NowMs) // exhausted: leave CONNECTED for DISCONNECTING
	}
	return nil
}

func dflowIdleIRS(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvRxData:
		return receiveData(sess, ev)
	case event.EvRxTurnReq:
		return turnAckThenISS(sess) // peer takes the IRS side; we answer TURN_ACK, then become ISS
	}
	return keepaliveCommon(sess, ev)
}

// receiveData implements the duplicate-detection rule from spec §4.5: a
// frame whose seq equals rx_expected-1 is a retransmission (re-ACK, no
// redelivery); any other out-of-order seq is dropped without ACK.
func receiveData(sess *session.Session, ev event.Event) []Effect {
	isNext := ev.Seq == sess.RxExpected
	isDup := ev.Seq == sess.RxExpected-1
	if !isNext && !isDup {
		return nil
	}
	if isNext {
		sess.RxExpected++
	}
	sess.PeerSNRx10 = int(wire.DecodeSNR(ev.SNRRaw) * 10)
	// ack_delay_raw is a placeholder; core.Loop.patchAckDelay overwrites it
	// with the real value once it knows how long this ACK sat before dispatch.
	frame := wire.BuildAck(sess.SessionID, ev.Seq, wire.Flags(0), currentSNRRaw(sess), 0)
	enterIdle(sess, ev.NowMs, session.DflowIdleIRS)
	effects := []Effect{emitControl(frame)}
	if isNext {
		effects = append(effects, deliverRx(ev.Payload))
	}
	return effects
}

func dflowAckTX(sess *session.Session, ev event.Event) []Effect {
	if ev.ID == event.EvTxComplete {
		enterIdle(sess, ev.NowMs, session.DflowIdleIRS)
	}
	return nil
}

// turnAckThenISS handles RX_TURN_REQ from either ISS or IRS idle states:
// reply TURN_ACK, then on send completion the caller becomes ISS.
func turnAckThenISS(sess *session.Session) []Effect {
	frame := wire.BuildTurnAck(sess.SessionID, currentSNRRaw(sess))
	sess.DflowState = session.DflowTurnAckTX
	return []Effect{emitControl(frame)}
}

func dflowTurnAckTX(sess *session.Session, ev event.Event) []Effect {
	if ev.ID == event.EvTxComplete {
		sess.Role = flipISSIRS(sess.Role)
		sess.StartupDlMs = 0 // clear startup gate on turn completion
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
	}
	return nil
}

// flipISSIRS does not change Session.Role (which is immutable per spec §3)
// — it is retained here only as a readability hook for future ISS/IRS
// bookkeeping that is distinct from Role; currently a no-op passthrough.
func flipISSIRS(r session.Role) session.Role { return r }

func dflowTurnReqTX(sess *session.Session, ev event.Event) []Effect {
	if ev.ID == event.EvTxComplete {
		sess.TxRetriesLeft = modetable.TurnReqRetries
		t := modetable.Lookup(sess.ControlMode)
		sess.ArmDeadline(ev.NowMs+t.RetryInterval.Milliseconds(), session.DeadlineRetry)
		sess.DflowState = session.DflowTurnReqWait
	}
	return nil
}

func dflowTurnReqWait(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvRxTurnAck:
		enterIdle(sess, ev.NowMs, session.DflowIdleIRS)
		return nil
	case event.EvTimerRetry:
		if sess.TxRetriesLeft > 0 {
			frame := wire.BuildTurnReq(sess.SessionID, sess.RxExpected-1, currentSNRRaw(sess))
			sess.TxRetriesLeft--
			sess.DflowState = session.DflowTurnReqTX
			return []Effect{emitControl(frame)}
		}
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
	}
	return nil
}

// evaluateModeLadder implements the upgrade/downgrade rule from spec §4.5's
// closing paragraph. It is called once per successful ACK. Upgrades (but not
// downgrades) are gated by spec §9's startup gate: suppressed for
// modetable.StartupWindow after connect, until modetable.StartupAcksNeeded
// ACKs have been observed, whichever comes first, so a healthy link is never
// stuck waiting out the rest of the window.
func evaluateModeLadder(sess *session.Session, nowMs int64) []Effect {
	if candidate, ok := nextDowngradeCandidate(sess); ok {
		return requestModeSwitch(sess, candidate)
	}
	gated := nowMs < sess.StartupDlMs && sess.StartupAcksSeen < modetable.StartupAcksNeeded
	sess.StartupAcksSeen++
	if gated {
		return nil
	}
	candidate, ok := nextUpgradeCandidate(sess)
	if ok {
		sess.ModeUpgradeHystCount++
		if sess.ModeUpgradeHystCount >= modetable.ModeUpgradeHyst {
			return requestModeSwitch(sess, candidate)
		}
	} else {
		sess.ModeUpgradeHystCount = 0
	}
	return nil
}

// nextDowngradeCandidate reports the mode one rung down the speed ladder
// when either N consecutive WAIT_ACK timeouts have piled up at the current
// mode or the local SNR EMA has fallen below the mode's qualifying
// threshold minus the hysteresis margin, per spec §4.5.
func nextDowngradeCandidate(sess *session.Session) (modetable.Mode, bool) {
	snr := float64(sess.LocalSNRx10) / 10
	timedOut := sess.ModeDowngradeCount >= modetable.ModeDowngradeCount
	switch sess.PayloadMode {
	case modetable.DATAC1:
		if timedOut || snr < modetable.SNRThresholdDATAC1-modetable.SNRHysteresisDB {
			return modetable.DATAC3, true
		}
	case modetable.DATAC3:
		if timedOut || snr < modetable.SNRThresholdDATAC3-modetable.SNRHysteresisDB {
			return modetable.DATAC4, true
		}
	}
	return 0, false
}

func nextUpgradeCandidate(sess *session.Session) (modetable.Mode, bool) {
	snr := float64(sess.LocalSNRx10) / 10
	backlog := sess.TxBacklogBytes
	minBacklog := modetable.BacklogMinWhenPeerTX
	if !sess.PeerHasData {
		minBacklog = modetable.BacklogForDATAC3
	}
	switch sess.PayloadMode {
	case modetable.DATAC4:
		if snr >= modetable.SNRThresholdDATAC3 && backlog >= minBacklog {
			return modetable.DATAC3, true
		}
	case modetable.DATAC3:
		need := modetable.BacklogForDATAC1
		if sess.PeerHasData {
			need = modetable.BacklogMinWhenPeerTX
		}
		if snr >= modetable.SNRThresholdDATAC1 && backlog >= need {
			return modetable.DATAC1, true
		}
	}
	return 0, false
}

func requestModeSwitch(sess *session.Session, mode modetable.Mode) []Effect {
	frame := wire.BuildModeReq(sess.SessionID, currentSNRRaw(sess), uint8(mode))
	sess.TxRetriesLeft = modetable.ModeReqRetries
	sess.ModeUpgradeHystCount = 0
	sess.ModeDowngradeCount = 0
	sess.DflowState = session.DflowModeReqTX
	return []Effect{emitControl(frame)}
}

func dflowModeReqTX(sess *session.Session, ev event.Event) []Effect {
	if ev.ID == event.EvTxComplete {
		t := modetable.Lookup(sess.ControlMode)
		sess.ArmDeadline(ev.NowMs+t.RetryInterval.Milliseconds(), session.DeadlineRetry)
		sess.DflowState = session.DflowModeReqWait
	}
	return nil
}

func dflowModeReqWait(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvRxModeAck:
		sess.PayloadMode = ev.Mode
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
		return []Effect{switchMode(ev.Mode)}
	case event.EvTimerRetry:
		if sess.TxRetriesLeft > 0 {
			sess.TxRetriesLeft--
			sess.DflowState = session.DflowModeReqTX
			return nil
		}
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
	}
	return nil
}

func dflowModeAckTX(sess *session.Session, ev event.Event) []Effect {
	if ev.ID == event.EvTxComplete {
		enterIdle(sess, ev.NowMs, session.DflowIdleIRS)
	}
	return nil
}

func dflowKeepaliveTX(sess *session.Session, ev event.Event) []Effect {
	if ev.ID == event.EvTxComplete {
		t := modetable.Lookup(sess.ControlMode)
		sess.ArmDeadline(ev.NowMs+t.RetryInterval.Milliseconds(), session.DeadlineKeepalive)
		sess.DflowState = session.DflowKeepaliveWait
	}
	return nil
}

func dflowKeepaliveWait(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvRxKeepaliveAck:
		sess.KeepaliveMiss = 0
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
	case event.EvTimerKeepalive, event.EvTimerRetry:
		sess.KeepaliveMiss++
		enterIdle(sess, ev.NowMs, session.DflowIdleISS)
		if sess.KeepaliveMiss >= modetable.KeepaliveMissLimit {
			return []Effect{{Kind: EffectInternalEvent, SelfEvent: &event.Event{ID: event.EvAppDisconnect}}}
		}
	}
	return nil
}

// keepaliveCommon handles RX_MODE_REQ (we are IRS target of a peer-initiated
// upgrade) and RX_KEEPALIVE from either idle state, plus sending KEEPALIVE
// when the idle keepalive deadline armed by enterIdle fires.
func keepaliveCommon(sess *session.Session, ev event.Event) []Effect {
	switch ev.ID {
	case event.EvRxModeReq:
		frame := wire.BuildModeAck(sess.SessionID, currentSNRRaw(sess), uint8(ev.Mode))
		sess.PayloadMode = ev.Mode
		sess.ModeDowngradeCount = 0
		sess.DflowState = session.DflowModeAckTX
		return []Effect{emitControl(frame)}
	case event.EvRxKeepalive:
		frame := wire.BuildKeepaliveAck(sess.SessionID, currentSNRRaw(sess))
		return []Effect{emitControl(frame)}
	case event.EvTimerKeepalive:
		frame := wire.BuildKeepalive(sess.SessionID, currentSNRRaw(sess))
		sess.DflowState = session.DflowKeepaliveTX
		return []Effect{emitControl(frame)}
	}
	return nil
}
