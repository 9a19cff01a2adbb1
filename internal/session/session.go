// Package session holds the per-connection Session struct and the outbound
// application byte ring that feeds data frames. Grounded on
// original_source/datalink_arq/arq_fsm.h's arq_session_t and
// original_source/datalink_arq/arq_channels.h's per-role buffering, adapted to
// Go's copy-on-read snapshot discipline instead of C's shared-struct access.
package session

import "github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"

// ConnState is the Level 1 (connection) FSM state, named after arq_conn_state_t.
type ConnState uint8

const (
	ConnDisconnected ConnState = iota
	ConnListening
	ConnCalling
	ConnAccepting
	ConnConnected
	ConnDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "DISCONNECTED"
	case ConnListening:
		return "LISTENING"
	case ConnCalling:
		return "CALLING"
	case ConnAccepting:
		return "ACCEPTING"
	case ConnConnected:
		return "CONNECTED"
	case ConnDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// DflowState is the Level 2 (data-flow) FSM state, named after arq_dflow_state_t.
// It only runs while ConnState == ConnConnected.
type DflowState uint8

const (
	DflowIdleISS DflowState = iota
	DflowDataTX
	DflowWaitAck
	DflowIdleIRS
	DflowDataRX
	DflowAckTX
	DflowTurnReqTX
	DflowTurnReqWait
	DflowTurnAckTX
	DflowModeReqTX
	DflowModeReqWait
	DflowModeAckTX
	DflowKeepaliveTX
	DflowKeepaliveWait
)

func (s DflowState) String() string {
	names := [...]string{
		"IDLE_ISS", "DATA_TX", "WAIT_ACK", "IDLE_IRS", "DATA_RX", "ACK_TX",
		"TURN_REQ_TX", "TURN_REQ_WAIT", "TURN_ACK_TX", "MODE_REQ_TX",
		"MODE_REQ_WAIT", "MODE_ACK_TX", "KEEPALIVE_TX", "KEEPALIVE_WAIT",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// Role is fixed for the lifetime of a session; who currently sends data (ISS)
// vs receives it (IRS) changes via TURN exchange, not by changing Role.
type Role uint8

const (
	RoleNone Role = iota
	RoleCaller
	RoleCallee
)

// DeadlineEvent tags what the armed deadline means, so the event loop knows
// which synthetic event to dispatch on expiry (spec §4.6 / Design Notes'
// "unify scattered deadlines into one tagged deadline_ms").
type DeadlineEvent uint8

const (
	DeadlineNone DeadlineEvent = iota
	DeadlineRetry
	DeadlineTimeout
	DeadlineAck
	DeadlinePeerBacklog
	DeadlineKeepalive
)

const noDeadline = ^int64(0)

// Session is the full per-connection state. It is owned exclusively by the
// single event-loop goroutine; any other goroutine that needs a read must go
// through Snapshot.
type Session struct {
	ConnState  ConnState
	DflowState DflowState
	Role       Role

	SessionID uint8

	LocalCall  string
	RemoteCall string

	TxSeq       uint8
	RxExpected  uint8
	OutstandSeq uint8 // seq of the frame currently in WAIT_ACK, valid only there

	PayloadMode modetable.Mode // one of DATAC4/DATAC3/DATAC1
	ControlMode modetable.Mode // always DATAC13
	SpeedIndex  int            // index into modetable.SpeedLadder, 0..2

	ModeUpgradeHystCount int
	ModeDowngradeCount   int // consecutive WAIT_ACK timeouts at current mode

	TxRetriesLeft int

	DeadlineMs      int64 // absolute monotonic ms; noDeadline sentinel means "no timer armed"
	DeadlineEvent   DeadlineEvent
	StateEnterMs    int64
	StartupDlMs     int64
	StartupAcksSeen int // count of ACKs observed since connect; gate lifts at modetable.StartupAcksNeeded

	PeerHasData     bool
	PeerSNRx10      int
	LocalSNRx10     int
	PeerBusyUntilMs int64

	TxBacklogBytes int
	TxPending      []byte // payload bytes sent in the current WAIT_ACK round, drained from Out only once ACKed

	// Out is the outbound application byte ring, per spec §3. Written by the
	// TCP ingress goroutine (Write synchronizes internally) and
	// Peek/Drain'd by the data-flow FSM, which runs on the event-loop
	// goroutine alone.
	Out *OutboundBuffer

	TeardownToNoClient bool // true: go to DISCONNECTED with no client; false: relisten

	KeepaliveMiss int
	LastRxMs      int64
}

// New creates a fresh Session in the DISCONNECTED state with no timer armed.
func New() *Session {
	return &Session{
		ConnState:     ConnDisconnected,
		DflowState:    DflowIdleISS,
		ControlMode:   modetable.DATAC13,
		PayloadMode:   modetable.DATAC4,
		DeadlineMs:    noDeadline,
		DeadlineEvent: DeadlineNone,
		Out:           NewOutboundBuffer(0),
	}
}

// ArmDeadline sets an absolute deadline and the event it should fire.
func (s *Session) ArmDeadline(atMs int64, ev DeadlineEvent) {
	s.DeadlineMs = atMs
	s.DeadlineEvent = ev
}

// ClearDeadline disarms the timer, per the invariant deadline_ms == ∞ iff no
// timer is armed.
func (s *Session) ClearDeadline() {
	s.DeadlineMs = noDeadline
	s.DeadlineEvent = DeadlineNone
}

// HasDeadline reports whether a timer is currently armed.
func (s *Session) HasDeadline() bool {
	return s.DeadlineMs != noDeadline
}

// Reset returns the session to its just-constructed state, clearing
// connection-specific fields. Called on teardown so the next CALL/LISTEN
// starts clean, per spec §3's "destroyed on entry to DISCONNECTED" lifecycle.
// Out's identity is preserved (only emptied) since the TCP ingress goroutine
// holds its own reference to it for the lifetime of the process.
func (s *Session) Reset() {
	out := s.Out
	*s = *New()
	if out != nil {
		out.Reset()
		s.Out = out
	}
}

// Snapshot is an immutable point-in-time copy of Session, safe to read from
// any goroutine without synchronizing against the event loop.
type Snapshot struct {
	ConnState   ConnState
	DflowState  DflowState
	Role        Role
	SessionID   uint8
	LocalCall   string
	RemoteCall  string
	PayloadMode modetable.Mode
	SpeedIndex  int
	TxSeq       uint8
	RxExpected  uint8
	TxBacklog   int
	PeerSNRx10  int
	LocalSNRx10 int
}

// Snapshot copies the subset of Session state external observers (status
// fan-out, telemetry) need, matching spec §5's "copy-on-read snapshot"
// discipline instead of exposing the live struct.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ConnState:   s.ConnState,
		DflowState:  s.DflowState,
		Role:        s.Role,
		SessionID:   s.SessionID,
		LocalCall:   s.LocalCall,
		RemoteCall:  s.RemoteCall,
		PayloadMode: s.PayloadMode,
		SpeedIndex:  s.SpeedIndex,
		TxSeq:       s.TxSeq,
		RxExpected:  s.RxExpected,
		TxBacklog:   s.TxBacklogBytes,
		PeerSNRx10:  s.PeerSNRx10,
		LocalSNRx10: s.LocalSNRx10,
	}
}
