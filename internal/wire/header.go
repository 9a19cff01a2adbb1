package wire

import "fmt"

// PacketType occupies the upper 2 bits of byte 0 (the framer byte).
type PacketType uint8

const (
	PacketControl PacketType = 0 // ARQ_CONTROL
	PacketData    PacketType = 1 // ARQ_DATA (also used, at DATAC13, for CONNECT frames)
)

// Subtype occupies byte 1 of the 8-byte header.
type Subtype uint8

const (
	SubtypeCall         Subtype = 1
	SubtypeAccept       Subtype = 2
	SubtypeAck          Subtype = 3
	SubtypeDisconnect   Subtype = 4
	SubtypeData         Subtype = 5
	SubtypeKeepalive    Subtype = 6
	SubtypeKeepaliveAck Subtype = 7
	SubtypeModeReq      Subtype = 8
	SubtypeModeAck      Subtype = 9
	SubtypeTurnReq      Subtype = 10
	SubtypeTurnAck      Subtype = 11
	// SubtypeReserved12 corresponds to the FLOW_HINT subtype one legacy
	// implementation carried and the other dropped (spec Open Question 1).
	// Never produced here; kept so the subtype enum has room to grow
	// without shifting wire values of anything that follows it.
	SubtypeReserved12 Subtype = 12
)

// Flags occupies byte 2: bit 7 TURN_REQ, bit 6 HAS_DATA, rest reserved zero.
type Flags uint8

const (
	FlagTurnReq Flags = 1 << 7
	FlagHasData Flags = 1 << 6
)

// HeaderSize is the length in bytes of the standard ARQ header.
const HeaderSize = 8

// ConnectFrameSize is the length in bytes of a CALL/ACCEPT frame.
const ConnectFrameSize = 14

// ErrBadCRC is returned by DecodeHeader/ParseConnect when the
// CRC-6 check fails. Per spec §4.1 and §7, a CRC failure is a silent
// drop — callers must not construct any event from it.
var ErrBadCRC = fmt.Errorf("wire: CRC-6 mismatch")

// ErrShort is returned when the input buffer is too small for its frame type.
var ErrShort = fmt.Errorf("wire: buffer too short")

// Header is the in-memory representation of the 8-byte ARQ header.
type Header struct {
	PacketType  PacketType
	Subtype     Subtype
	Flags       Flags
	SessionID   uint8
	TxSeq       uint8
	RxAckSeq    uint8
	SNRRaw      uint8
	AckDelayRaw uint8
}

// EncodeHeader writes h into a fresh 8-byte slice, computing the CRC-6 over
// bytes 1..7 and storing it, together with PacketType, in byte 0.
func EncodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[1] = byte(h.Subtype)
	buf[2] = byte(h.Flags)
	buf[3] = h.SessionID
	buf[4] = h.TxSeq
	buf[5] = h.RxAckSeq
	buf[6] = h.SNRRaw
	buf[7] = h.AckDelayRaw
	writeFramerByte(buf[:], h.PacketType)
	return buf
}

// DecodeHeader parses the first 8 bytes of buf into a Header. The CRC-6 byte
// is checked first, as spec §4.1 requires, over the whole of buf (header plus
// any trailing payload) since writeFramerByte computed it the same way; any
// mismatch yields ErrBadCRC and no partial state is returned.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShort
	}
	if !checkFramerByte(buf) {
		return Header{}, ErrBadCRC
	}
	return Header{
		PacketType:  PacketType(buf[0] >> 6),
		Subtype:     Subtype(buf[1]),
		Flags:       Flags(buf[2]),
		SessionID:   buf[3],
		TxSeq:       buf[4],
		RxAckSeq:    buf[5],
		SNRRaw:      buf[6],
		AckDelayRaw: buf[7],
	}, nil
}

// PatchAckDelay overwrites an already-built ACK frame's ack_delay_raw byte
// and recomputes its CRC-6, so the caller can fill in a value not known at
// the moment the FSM built the frame (the true ack_delay_raw is the time from
// the DATA frame's arrival to the ACK's dispatch). frame must be a HeaderSize
// buffer as returned by BuildAck; the packet type is preserved from byte 0.
func PatchAckDelay(frame []byte, raw uint8) {
	if len(frame) < HeaderSize {
		return
	}
	pt := PacketType(frame[0] >> 6)
	frame[7] = raw
	writeFramerByte(frame[:HeaderSize], pt)
}

// writeFramerByte sets buf[0] to packet_type<<6 | crc6(buf[1:len(buf)]).
func writeFramerByte(buf []byte, pt PacketType) {
	c := crc6(buf[1:])
	buf[0] = byte(pt&0x03)<<6 | c
}

// checkFramerByte verifies buf[0] against a freshly computed CRC-6 of buf[1:].
func checkFramerByte(buf []byte) bool {
	want := buf[0] & 0x3F
	got := crc6(buf[1:])
	return want == got
}

// --- frame builders -------------------------------------------------------

func buildControl(subtype Subtype, sessionID, txSeq, rxAckSeq uint8, flags Flags, snrRaw, ackDelayRaw uint8, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[1] = byte(subtype)
	buf[2] = byte(flags)
	buf[3] = sessionID
	buf[4] = txSeq
	buf[5] = rxAckSeq
	buf[6] = snrRaw
	buf[7] = ackDelayRaw
	copy(buf[HeaderSize:], payload)
	writeFramerByte(buf, PacketControl)
	return buf
}

// BuildAck constructs an ACK frame acknowledging rxAckSeq.
func BuildAck(sessionID, rxAckSeq uint8, flags Flags, snrRaw, ackDelayRaw uint8) []byte {
	return buildControl(SubtypeAck, sessionID, 0, rxAckSeq, flags, snrRaw, ackDelayRaw, nil)
}

// BuildDisconnect constructs a DISCONNECT frame.
func BuildDisconnect(sessionID, snrRaw uint8) []byte {
	return buildControl(SubtypeDisconnect, sessionID, 0, 0, 0, snrRaw, 0, nil)
}

// BuildKeepalive constructs a KEEPALIVE frame.
func BuildKeepalive(sessionID, snrRaw uint8) []byte {
	return buildControl(SubtypeKeepalive, sessionID, 0, 0, 0, snrRaw, 0, nil)
}

// BuildKeepaliveAck constructs a KEEPALIVE_ACK frame.
func BuildKeepaliveAck(sessionID, snrRaw uint8) []byte {
	return buildControl(SubtypeKeepaliveAck, sessionID, 0, 0, 0, snrRaw, 0, nil)
}

// BuildTurnReq constructs a TURN_REQ frame.
func BuildTurnReq(sessionID, rxAckSeq, snrRaw uint8) []byte {
	return buildControl(SubtypeTurnReq, sessionID, 0, rxAckSeq, 0, snrRaw, 0, nil)
}

// BuildTurnAck constructs a TURN_ACK frame.
func BuildTurnAck(sessionID, snrRaw uint8) []byte {
	return buildControl(SubtypeTurnAck, sessionID, 0, 0, 0, snrRaw, 0, nil)
}

// BuildModeReq constructs a MODE_REQ frame requesting the given mode index.
func BuildModeReq(sessionID, snrRaw uint8, mode uint8) []byte {
	return buildControl(SubtypeModeReq, sessionID, 0, 0, 0, snrRaw, 0, []byte{mode})
}

// BuildModeAck constructs a MODE_ACK frame confirming the given mode index.
func BuildModeAck(sessionID, snrRaw uint8, mode uint8) []byte {
	return buildControl(SubtypeModeAck, sessionID, 0, 0, 0, snrRaw, 0, []byte{mode})
}

// BuildData constructs a DATA frame carrying payload, routed via PACKET_ARQ_DATA.
func BuildData(sessionID, txSeq, rxAckSeq uint8, flags Flags, snrRaw uint8, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[1] = byte(SubtypeData)
	buf[2] = byte(flags)
	buf[3] = sessionID
	buf[4] = txSeq
	buf[5] = rxAckSeq
	buf[6] = snrRaw
	buf[7] = 0
	copy(buf[HeaderSize:], payload)
	writeFramerByte(buf, PacketData)
	return buf
}

// --- SNR codec --------------------------------------------------------

// EncodeSNR encodes a dB value into the wire byte:
// clamp(round(snrDB)+128, 1, 255); 0 is reserved for "unknown".
func EncodeSNR(snrDB float64) uint8 {
	v := int(snrDB + 0.5)
	if snrDB < 0 {
		v = int(snrDB - 0.5)
	}
	v += 128
	if v < 1 {
		v = 1
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// DecodeSNR decodes the wire byte back to dB; 0 decodes to the unknown
// sentinel 0.0.
func DecodeSNR(raw uint8) float64 {
	if raw == 0 {
		return 0
	}
	return float64(int(raw) - 128)
}

// --- ACK-delay codec --------------------------------------------------

// EncodeAckDelay encodes a millisecond delay into whole 10ms units (the
// remainder is dropped), except that a non-zero delay under 10ms encodes
// as 1, and ceilinged at 255 (2550ms).
func EncodeAckDelay(delayMs uint32) uint8 {
	units := delayMs / 10
	if units == 0 && delayMs > 0 {
		units = 1
	}
	if units > 0xFF {
		units = 0xFF
	}
	return uint8(units)
}

// DecodeAckDelay decodes the wire byte back to milliseconds.
func DecodeAckDelay(raw uint8) uint32 {
	return uint32(raw) * 10
}
