// Package modetable holds the fixed per-modem-mode timing table and the
// auxiliary retry/hysteresis constants from spec §4.2. Nothing here is
// computed at runtime — it is a static lookup, grounded on
// original_source/datalink_arq/arq_protocol.h's arq_mode_timing_t table.
package modetable

import "time"

// Mode identifies one of the four modem modes HERMES drives.
type Mode uint8

const (
	DATAC13 Mode = iota // control mode: ACKs, keepalives, turn/mode exchanges, CALL/ACCEPT
	DATAC4              // payload mode: most robust, lowest throughput
	DATAC3              // payload mode: middle of the speed ladder
	DATAC1              // payload mode: highest throughput, least robust
	modeCount
)

func (m Mode) String() string {
	switch m {
	case DATAC13:
		return "DATAC13"
	case DATAC4:
		return "DATAC4"
	case DATAC3:
		return "DATAC3"
	case DATAC1:
		return "DATAC1"
	default:
		return "UNKNOWN"
	}
}

// Timing is one row of the fixed mode table.
type Timing struct {
	FrameDuration time.Duration
	TXPeriod      time.Duration
	AckTimeout    time.Duration
	RetryInterval time.Duration
	PayloadBytes  int
}

// table is indexed by Mode. Values are exact per spec §4.2; do not round.
var table = [modeCount]Timing{
	DATAC13: {
		FrameDuration: 2500 * time.Millisecond,
		TXPeriod:      1000 * time.Millisecond,
		AckTimeout:    6000 * time.Millisecond,
		RetryInterval: 7000 * time.Millisecond,
		PayloadBytes:  14,
	},
	DATAC4: {
		FrameDuration: 5700 * time.Millisecond,
		TXPeriod:      1000 * time.Millisecond,
		AckTimeout:    9000 * time.Millisecond,
		RetryInterval: 10000 * time.Millisecond,
		PayloadBytes:  54,
	},
	DATAC3: {
		FrameDuration: 4000 * time.Millisecond,
		TXPeriod:      1000 * time.Millisecond,
		AckTimeout:    8000 * time.Millisecond,
		RetryInterval: 9000 * time.Millisecond,
		PayloadBytes:  126,
	},
	DATAC1: {
		FrameDuration: 6500 * time.Millisecond,
		TXPeriod:      1000 * time.Millisecond,
		AckTimeout:    11000 * time.Millisecond,
		RetryInterval: 12000 * time.Millisecond,
		PayloadBytes:  510,
	},
}

// Lookup returns the Timing row for mode. Panics on an out-of-range mode
// since the table is fixed and exhaustive — callers never construct a
// Mode outside the four named constants.
func Lookup(mode Mode) Timing {
	if mode >= modeCount {
		panic("modetable: mode out of range")
	}
	return table[mode]
}

// SpeedLadder is the ordered preference payload modes are upgraded along.
var SpeedLadder = [3]Mode{DATAC4, DATAC3, DATAC1}

// Auxiliary constants, spec §4.2.
const (
	ChannelGuard       = 400 * time.Millisecond
	AckGuard           = 1 * time.Second
	CallRetries        = 4
	AcceptRetries      = 3
	DataRetries        = 10
	DisconnectRetries  = 2
	ConnectGraceSlots  = 2
	KeepaliveInterval  = 20 * time.Second
	KeepaliveMissLimit = 5
	TurnReqRetries     = 2
	ModeReqRetries     = 2
	ModeUpgradeHyst    = 1
	StartupWindow      = 8 * time.Second
	StartupAcksNeeded  = 1
	PeerPayloadHold    = 15 * time.Second
	SNRHysteresisDB    = 1.0
	ModeSwitchCooldown = 250 * time.Millisecond
	ModeDowngradeCount = 3 // consecutive WAIT_ACK timeouts that force a downgrade
)

// Backlog thresholds (bytes) gating an upgrade onto each payload mode.
const (
	BacklogForDATAC3     = 56
	BacklogForDATAC1     = 126
	BacklogMinWhenPeerTX = 48
)

// SNR thresholds (dB, EMA) gating an upgrade onto each payload mode.
const (
	SNRThresholdDATAC3 = 0.0
	SNRThresholdDATAC1 = 5.0
)
