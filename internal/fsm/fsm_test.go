package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/session"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/wire"
)

func newConfig() *Config {
	cfg := NewConfig("N0CALL")
	cfg.SetListening(true)
	return cfg
}

// S2-ish: a CALLER issues CONNECT, sees the CALL frame queued and moves to CALLING.
func TestConnectEmitsCallAndEntersCalling(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	effects := Dispatch(cfg, sess, event.Event{ID: event.EvAppConnect, RemoteCall: "W1AW", NowMs: 0})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectEmitControl, effects[0].Kind)
	assert.Equal(t, session.ConnCalling, sess.ConnState)
	assert.NotZero(t, sess.SessionID)

	hdr, err := wire.ParseConnect(effects[0].EmitBytes)
	require.NoError(t, err)
	assert.Equal(t, "W1AW", hdr.Dst)
	assert.Equal(t, "N0CALL", hdr.Src)
	assert.False(t, hdr.IsAccept)
}

// A LISTENING callee receiving RX_CALL answers with ACCEPT and enters ACCEPTING.
func TestListeningRxCallEmitsAccept(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnListening

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxCall, RemoteCall: "W1AW", SessionID: 7, NowMs: 0})
	require.Len(t, effects, 1)
	assert.Equal(t, session.ConnAccepting, sess.ConnState)
	assert.Equal(t, uint8(7), sess.SessionID)
	assert.Equal(t, session.RoleCallee, sess.Role)
}

// CALLING + matching RX_ACCEPT -> CONNECTED, ISS idle.
func TestCallingRxAcceptEntersConnectedAsISS(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnCalling
	sess.Role = session.RoleCaller
	sess.SessionID = 5

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxAccept, SessionID: 5, NowMs: 100})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectNewSession, effects[0].Kind)
	assert.Equal(t, session.ConnConnected, sess.ConnState)
	assert.Equal(t, session.DflowIdleISS, sess.DflowState)
}

// Mismatched session_id on RX_ACCEPT must not perturb state (spec §3 invariant).
func TestMismatchedSessionIDIsDropped(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnCalling
	sess.SessionID = 5

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxAccept, SessionID: 9, NowMs: 100})
	assert.Nil(t, effects)
	assert.Equal(t, session.ConnCalling, sess.ConnState)
}

// S3: single data frame delivered and ACKed advances tx_seq and clears backlog.
func TestWaitAckAdvancesOnMatchingAck(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowWaitAck
	sess.Role = session.RoleCaller
	sess.TxSeq = 0
	sess.OutstandSeq = 0
	sess.TxBacklogBytes = 0

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxAck, AckSeq: 0, SNRRaw: 150, NowMs: 9000})
	assert.Empty(t, effects)
	assert.Equal(t, uint8(1), sess.TxSeq)
	assert.Equal(t, session.DflowIdleISS, sess.DflowState)
	// idle entry arms the keepalive deadline rather than leaving none armed.
	require.True(t, sess.HasDeadline())
	assert.Equal(t, session.DeadlineKeepalive, sess.DeadlineEvent)
}

// S4: ACK timeout with retries left rebuilds and resends the same DATA frame.
func TestAckTimeoutRetransmits(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowWaitAck
	sess.OutstandSeq = 0
	sess.TxRetriesLeft = modetable.DataRetries

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvTimerAck, NowMs: 9000})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectEmitPayload, effects[0].Kind)
	assert.Equal(t, session.DflowDataTX, sess.DflowState)
	assert.Equal(t, modetable.DataRetries-1, sess.TxRetriesLeft)
}

// Duplicate DATA (seq == rx_expected-1) is re-ACKed without redelivery.
func TestDuplicateDataIsReACKedNotRedelivered(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowIdleIRS
	sess.RxExpected = 1 // we've already accepted seq 0 once

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxData, Seq: 0, SNRRaw: 150, Payload: []byte("dup"), NowMs: 500})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectEmitControl, effects[0].Kind)
	assert.Equal(t, uint8(1), sess.RxExpected) // unchanged
}

// In-order DATA is delivered once and ACKed, advancing rx_expected.
func TestInOrderDataIsDeliveredAndAcked(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowIdleIRS
	sess.RxExpected = 0

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxData, Seq: 0, SNRRaw: 150, Payload: []byte("hi"), NowMs: 500})
	require.Len(t, effects, 2)
	assert.Equal(t, EffectEmitControl, effects[0].Kind)
	assert.Equal(t, EffectDeliverRx, effects[1].Kind)
	assert.Equal(t, []byte("hi"), effects[1].Payload)
	assert.Equal(t, uint8(1), sess.RxExpected)
}

// Out-of-order DATA (neither next nor dup) is dropped without ACK.
func TestOutOfOrderDataIsDroppedSilently(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowIdleIRS
	sess.RxExpected = 0

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxData, Seq: 5, Payload: []byte("x"), NowMs: 500})
	assert.Nil(t, effects)
	assert.Equal(t, uint8(0), sess.RxExpected)
}

// S5: mode upgrade ladder issues MODE_REQ once hysteresis + SNR + backlog align.
func TestModeUpgradeRequestedAfterHysteresis(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowWaitAck
	sess.PayloadMode = modetable.DATAC4
	sess.LocalSNRx10 = 60 // 6.0 dB, above DATAC3's 0dB and DATAC1's 5dB thresholds
	sess.TxBacklogBytes = 200
	sess.OutstandSeq = 0

	// With ModeUpgradeHyst == 1 the first qualifying ACK both increments the
	// hysteresis counter and meets the >= comparison, so MODE_REQ is issued
	// on that same ACK.
	Dispatch(cfg, sess, event.Event{ID: event.EvRxAck, AckSeq: 0, NowMs: 1000})
	assert.Equal(t, session.DflowModeReqTX, sess.DflowState)
}

// App-level DISCONNECT from CONNECTED moves to DISCONNECTING and emits a
// DISCONNECT frame.
func TestAppDisconnectFromConnectedEntersDisconnecting(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.SessionID = 3

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvAppDisconnect, NowMs: 0})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectEmitControl, effects[0].Kind)
	assert.Equal(t, session.ConnDisconnecting, sess.ConnState)
}

// Retry exhaustion while CALLING returns to DISCONNECTED.
func TestCallingRetryExhaustionDisconnects(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnCalling
	sess.TxRetriesLeft = 0

	Dispatch(cfg, sess, event.Event{ID: event.EvTimerRetry, NowMs: 0})
	assert.Equal(t, session.ConnDisconnected, sess.ConnState)
}

// Keepalive miss-limit escalates to an internal APP_DISCONNECT effect.
func TestKeepaliveMissLimitRequestsDisconnect(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowKeepaliveWait
	sess.KeepaliveMiss = modetable.KeepaliveMissLimit - 1

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvTimerKeepalive, NowMs: 0})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectInternalEvent, effects[0].Kind)
	assert.Equal(t, event.EvAppDisconnect, effects[0].SelfEvent.ID)
}

// DATA_READY in IDLE_ISS pulls the real outbound bytes out of Out (not
// zero-fill), and EvRxAck drains exactly those bytes from the ring.
func TestIdleISSSendsRealOutboundBytesAndAckDrainsThem(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowIdleISS
	sess.PayloadMode = modetable.DATAC4
	n, err := sess.Out.Write([]byte("hello world"))
	require.NoError(t, err)
	sess.TxBacklogBytes = n

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvAppDataReady, NowMs: 100})
	require.Len(t, effects, 1)
	require.Equal(t, EffectEmitPayload, effects[0].Kind)
	assert.Equal(t, []byte("hello world"), effects[0].EmitBytes[wire.HeaderSize:])
	assert.Equal(t, session.DflowDataTX, sess.DflowState)
	assert.Equal(t, n, sess.TxBacklogBytes) // not yet drained, only sent

	sess.DflowState = session.DflowWaitAck // skip the TX_COMPLETE step this test isn't exercising
	effects = Dispatch(cfg, sess, event.Event{ID: event.EvRxAck, AckSeq: 0, NowMs: 200})
	assert.Empty(t, effects)
	assert.Zero(t, sess.TxBacklogBytes)
	assert.Zero(t, sess.Out.Len())
}

// Three consecutive WAIT_ACK timeouts force a downgrade request instead of
// a further retransmission attempt.
func TestConsecutiveAckTimeoutsTriggerDowngrade(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowWaitAck
	sess.PayloadMode = modetable.DATAC3
	sess.TxRetriesLeft = modetable.DataRetries

	for i := 0; i < modetable.ModeDowngradeCount-1; i++ {
		effects := Dispatch(cfg, sess, event.Event{ID: event.EvTimerAck, NowMs: int64(i)})
		require.Len(t, effects, 1)
		assert.Equal(t, EffectEmitPayload, effects[0].Kind)
		assert.Equal(t, session.DflowDataTX, sess.DflowState)
		sess.DflowState = session.DflowWaitAck
	}

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvTimerAck, NowMs: 99})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectEmitControl, effects[0].Kind)
	assert.Equal(t, session.DflowModeReqTX, sess.DflowState)
	hdr, err := wire.DecodeHeader(effects[0].EmitBytes)
	require.NoError(t, err)
	assert.Equal(t, wire.SubtypeModeReq, hdr.Subtype)
	assert.Equal(t, uint8(modetable.DATAC4), effects[0].EmitBytes[wire.HeaderSize])
}

// A local SNR below (target - hysteresis) downgrades immediately, even with
// ModeDowngradeCount still at zero.
func TestLowSNRTriggersImmediateDowngrade(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowWaitAck
	sess.PayloadMode = modetable.DATAC1
	sess.LocalSNRx10 = 30 // 3.0 dB, below DATAC1's 5dB threshold minus 1dB hysteresis
	sess.OutstandSeq = 0

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvRxAck, AckSeq: 0, NowMs: 0})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectEmitControl, effects[0].Kind)
	assert.Equal(t, session.DflowModeReqTX, sess.DflowState)
}

// A freshly connected session with data already queued holds off sending
// until either the startup window closes or a first successful ACK lifts
// the gate early, per spec §9's startup gate.
func TestStartupGateBlocksFirstSendUntilWindowOrFirstAck(t *testing.T) {
	cfg := newConfig()
	sess := session.New()
	sess.ConnState = session.ConnConnected
	sess.DflowState = session.DflowIdleISS
	sess.StartupDlMs = 8000
	n, err := sess.Out.Write([]byte("hi"))
	require.NoError(t, err)
	sess.TxBacklogBytes = n

	effects := Dispatch(cfg, sess, event.Event{ID: event.EvAppDataReady, NowMs: 1000})
	assert.Empty(t, effects)
	assert.Equal(t, session.DflowIdleISS, sess.DflowState)

	effects = Dispatch(cfg, sess, event.Event{ID: event.EvAppDataReady, NowMs: 9000})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectEmitPayload, effects[0].Kind)
	assert.Equal(t, session.DflowDataTX, sess.DflowState)
}
