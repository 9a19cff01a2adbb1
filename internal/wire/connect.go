package wire

import "fmt"

// CONNECT frame byte layout (14 bytes total), per
// original_source/datalink_arq/arq_protocol.h:
//
//	byte 0        framer: packet_type<<6 | crc6(bytes[1:14])
//	byte 1        session byte: low 7 bits = session_id, bit 7 = ACCEPT flag
//	bytes 2..13   arithmetic-coded "DST|SRC" callsign payload (12 bytes max)
const (
	connectSessionIdx = 1
	connectPayloadIdx = 2
	connectSessionMask = 0x7F
	connectAcceptFlag  = 0x80
	connectMetaSize    = 2
	connectMaxEncoded  = ConnectFrameSize - connectMetaSize
	connectMaxCallLen  = 12
)

// ErrBadCallsign is returned when a callsign contains a character outside
// the wire alphabet (A-Z, 0-9, '-') or decodes to a corrupt stream.
var ErrBadCallsign = fmt.Errorf("wire: invalid callsign encoding")

// BuildCall encodes a CALL frame addressed to dst from src: sessionID must
// fit in 7 bits.
func BuildCall(sessionID uint8, dst, src string) ([]byte, error) {
	return buildConnect(sessionID, false, dst, src)
}

// BuildAccept encodes an ACCEPT frame addressed to dst from src: sessionID
// must fit in 7 bits.
func BuildAccept(sessionID uint8, dst, src string) ([]byte, error) {
	return buildConnect(sessionID, true, dst, src)
}

func buildConnect(sessionID uint8, accept bool, dst, src string) ([]byte, error) {
	if len(dst) > connectMaxCallLen || len(src) > connectMaxCallLen {
		return nil, ErrBadCallsign
	}
	enc, err := encodeCallsignPair(dst, src)
	if err != nil {
		return nil, err
	}
	if len(enc) > connectMaxEncoded {
		return nil, ErrBadCallsign
	}
	buf := make([]byte, ConnectFrameSize)
	sessByte := sessionID & connectSessionMask
	if accept {
		sessByte |= connectAcceptFlag
	}
	buf[connectSessionIdx] = sessByte
	copy(buf[connectPayloadIdx:], enc)
	writeFramerByte(buf, PacketData)
	return buf, nil
}

// ConnectFrame is the parsed form of a CALL/ACCEPT frame.
type ConnectFrame struct {
	SessionID uint8
	IsAccept  bool
	Dst       string
	Src       string
}

// ParseConnect parses and CRC-validates a 14-byte CONNECT frame.
func ParseConnect(buf []byte) (ConnectFrame, error) {
	if len(buf) < ConnectFrameSize {
		return ConnectFrame{}, ErrShort
	}
	if !checkFramerByte(buf[:ConnectFrameSize]) {
		return ConnectFrame{}, ErrBadCRC
	}
	sessByte := buf[connectSessionIdx]
	dst, src, err := decodeCallsignPair(buf[connectPayloadIdx:ConnectFrameSize], connectMaxCallLen)
	if err != nil {
		return ConnectFrame{}, err
	}
	return ConnectFrame{
		SessionID: sessByte & connectSessionMask,
		IsAccept:  sessByte&connectAcceptFlag != 0,
		Dst:       dst,
		Src:       src,
	}, nil
}
