package ptt

import (
	"context"
	"fmt"

	serial "github.com/daedaluz/goserial"
)

// Line selects which modem-control line keys PTT, mirroring the teacher's
// "ptt COM1 RTS" / "ptt COM1 DTR" config directive in src/ptt.go.
type Line int

const (
	LineRTS Line = iota
	LineDTR
)

// modemLiner is the slice of *serial.Port this package depends on, split
// out so tests can substitute a recording fake instead of opening a real
// tty, the same shape as the teacher's mockGPIODLine in src/ptt_test.go.
type modemLiner interface {
	EnableModemLines(line serial.ModemLine) error
	DisableModemLines(line serial.ModemLine) error
	Close() error
}

// SerialKeyer keys PTT by raising RTS or DTR on a serial port, grounded on
// daedaluz/goserial's EnableModemLines/DisableModemLines, the Go-native
// replacement for the teacher's direct ioctl(TIOCMBIS/TIOCMBIC) calls.
type SerialKeyer struct {
	port   modemLiner
	line   serial.ModemLine
	invert bool
}

// NewSerialKeyer opens device (e.g. "/dev/ttyUSB0") and arms line for PTT
// use. The port is opened read/write but never used for data; goserial's
// CAT control and the modem's audio codec are independent concerns.
func NewSerialKeyer(device string, line Line, invert bool) (*SerialKeyer, error) {
	port, err := serial.Open(device, serial.NewOptions())
	if err != nil {
		return nil, fmt.Errorf("ptt: open serial port %s: %w", device, err)
	}
	return newSerialKeyer(port, line, invert)
}

func newSerialKeyer(port modemLiner, line Line, invert bool) (*SerialKeyer, error) {
	modemLine := serial.TIOCM_RTS
	if line == LineDTR {
		modemLine = serial.TIOCM_DTR
	}
	k := &SerialKeyer{port: port, line: modemLine, invert: invert}
	if err := k.Unkey(context.Background()); err != nil {
		port.Close()
		return nil, err
	}
	return k, nil
}

func (k *SerialKeyer) Key(ctx context.Context) error {
	return k.setAsserted(true)
}

func (k *SerialKeyer) Unkey(ctx context.Context) error {
	return k.setAsserted(false)
}

func (k *SerialKeyer) setAsserted(asserted bool) error {
	if k.invert {
		asserted = !asserted
	}
	if asserted {
		return k.port.EnableModemLines(k.line)
	}
	return k.port.DisableModemLines(k.line)
}

func (k *SerialKeyer) Close() error {
	return k.port.Close()
}
