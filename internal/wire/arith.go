package wire

// Static-frequency range coder used to compress callsigns inside CONNECT
// frames. The original C implementation called out to an external
// arith.c/arith_model that was not retrievable alongside arq_protocol.c;
// since both ends of an ARQ link always run this same binary, there is no
// bit-compatibility requirement to preserve — this coder only has to be
// self-consistent between its own Encode and Decode.
//
// The alphabet is the 38 symbols legal in a callsign-plus-SSID string:
// 'A'-'Z', '0'-'9', '-', and a terminator. Frequencies are fixed, not
// adaptive, chosen to favor the letter/digit mix typical of real callsigns.

const (
	symTerminator = 36
	symDash       = 37
	alphabetSize  = 38
	codeBits      = 32
	topValue      = uint64(1) << codeBits
	bottomValue   = topValue >> 8
)

var symFreq = [alphabetSize]uint32{
	// A-Z
	8, 2, 4, 4, 12, 2, 2, 6, 8, 1, 2, 4, 3,
	7, 8, 2, 1, 6, 6, 9, 3, 2, 2, 1, 2, 1,
	// 0-9
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	// terminator, dash
	1, 2,
}

var symCumFreq [alphabetSize + 1]uint32

func init() {
	var total uint32
	for i, f := range symFreq {
		symCumFreq[i] = total
		total += f
	}
	symCumFreq[alphabetSize] = total
}

func totalFreq() uint32 {
	return symCumFreq[alphabetSize]
}

func symbolFor(ch byte) (int, bool) {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return int(ch - 'A'), true
	case ch >= '0' && ch <= '9':
		return 26 + int(ch-'0'), true
	case ch == '-':
		return symDash, true
	default:
		return 0, false
	}
}

func charFor(sym int) byte {
	switch {
	case sym < 26:
		return 'A' + byte(sym)
	case sym < 36:
		return '0' + byte(sym-26)
	default:
		return '-'
	}
}

type rangeEncoder struct {
	low   uint64
	width uint64
	out   []byte
}

func newRangeEncoder() *rangeEncoder {
	return &rangeEncoder{width: topValue}
}

func (e *rangeEncoder) encode(cumLo, cumHi, total uint32) {
	step := e.width / uint64(total)
	e.low += step * uint64(cumLo)
	e.width = step * uint64(cumHi-cumLo)
	for e.width < bottomValue {
		e.out = append(e.out, byte(e.low>>24))
		e.low = (e.low << 8) & (topValue - 1)
		e.width <<= 8
	}
}

func (e *rangeEncoder) finish() []byte {
	for i := 0; i < 4; i++ {
		e.out = append(e.out, byte(e.low>>24))
		e.low = (e.low << 8) & (topValue - 1)
	}
	return e.out
}

type rangeDecoder struct {
	low   uint64
	width uint64
	code  uint64
	in    []byte
	pos   int
}

func newRangeDecoder(in []byte) *rangeDecoder {
	d := &rangeDecoder{width: topValue, in: in}
	for i := 0; i < 4; i++ {
		d.code = (d.code << 8) | uint64(d.nextByte())
	}
	return d
}

func (d *rangeDecoder) nextByte() byte {
	if d.pos >= len(d.in) {
		d.pos++
		return 0
	}
	b := d.in[d.pos]
	d.pos++
	return b
}

func (d *rangeDecoder) getFreq(total uint32) uint32 {
	d.stepWidth(total)
	v := uint32((d.code - d.low) / (d.width / uint64(total)))
	if v >= total {
		v = total - 1
	}
	return v
}

func (d *rangeDecoder) stepWidth(total uint32) {
	// no-op placeholder retained for symmetry with encode's step division;
	// width/total is recomputed at each call to avoid drift.
	_ = total
}

func (d *rangeDecoder) decode(cumLo, cumHi, total uint32) {
	step := d.width / uint64(total)
	d.low += step * uint64(cumLo)
	d.width = step * uint64(cumHi-cumLo)
	for d.width < bottomValue {
		d.code = ((d.code << 8) | uint64(d.nextByte())) & (topValue - 1)
		d.low = (d.low << 8) & (topValue - 1)
		d.width <<= 8
	}
}

// encodeCallsign range-codes s (upper-cased by the caller) into a compact
// byte slice terminated by the internal terminator symbol.
func encodeCallsign(s string) ([]byte, error) {
	enc := newRangeEncoder()
	total := totalFreq()
	for i := 0; i < len(s); i++ {
		sym, ok := symbolFor(s[i])
		if !ok {
			return nil, ErrBadCallsign
		}
		enc.encode(symCumFreq[sym], symCumFreq[sym+1], total)
	}
	enc.encode(symCumFreq[symTerminator], symCumFreq[symTerminator+1], total)
	return enc.finish(), nil
}

// decodeCallsign reverses encodeCallsign, stopping at the terminator symbol
// or once maxLen characters have been produced (defensive bound against a
// corrupt stream that never emits a terminator).
func decodeCallsign(buf []byte, maxLen int) (string, error) {
	dec := newRangeDecoder(buf)
	total := totalFreq()
	out := make([]byte, 0, maxLen)
	for len(out) < maxLen {
		f := dec.getFreq(total)
		sym := findSymbol(f)
		if sym == symTerminator {
			dec.decode(symCumFreq[sym], symCumFreq[sym+1], total)
			return string(out), nil
		}
		dec.decode(symCumFreq[sym], symCumFreq[sym+1], total)
		out = append(out, charFor(sym))
	}
	return "", ErrBadCallsign
}

// encodeCallsignPair range-codes dst followed by src into a single
// terminator-delimited stream, matching the CONNECT frame's "DST|SRC"
// payload (spec §4.1).
func encodeCallsignPair(dst, src string) ([]byte, error) {
	enc := newRangeEncoder()
	total := totalFreq()
	for _, s := range [...]string{dst, src} {
		for i := 0; i < len(s); i++ {
			sym, ok := symbolFor(s[i])
			if !ok {
				return nil, ErrBadCallsign
			}
			enc.encode(symCumFreq[sym], symCumFreq[sym+1], total)
		}
		enc.encode(symCumFreq[symTerminator], symCumFreq[symTerminator+1], total)
	}
	return enc.finish(), nil
}

// decodeCallsignPair reverses encodeCallsignPair, each call stopping at the
// terminator symbol or maxLen characters per callsign.
func decodeCallsignPair(buf []byte, maxLen int) (dst, src string, err error) {
	dec := newRangeDecoder(buf)
	total := totalFreq()
	decodeOne := func() (string, error) {
		out := make([]byte, 0, maxLen)
		for len(out) < maxLen {
			f := dec.getFreq(total)
			sym := findSymbol(f)
			if sym == symTerminator {
				dec.decode(symCumFreq[sym], symCumFreq[sym+1], total)
				return string(out), nil
			}
			dec.decode(symCumFreq[sym], symCumFreq[sym+1], total)
			out = append(out, charFor(sym))
		}
		return "", ErrBadCallsign
	}
	dst, err = decodeOne()
	if err != nil {
		return "", "", err
	}
	src, err = decodeOne()
	if err != nil {
		return "", "", err
	}
	return dst, src, nil
}

func findSymbol(f uint32) int {
	for i := 0; i < alphabetSize; i++ {
		if f >= symCumFreq[i] && f < symCumFreq[i+1] {
			return i
		}
	}
	return alphabetSize - 1
}
