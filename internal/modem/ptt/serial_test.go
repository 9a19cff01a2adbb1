package ptt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serial "github.com/daedaluz/goserial"
)

// fakeModemLiner records EnableModemLines/DisableModemLines calls without
// touching a real tty, mirroring the teacher's mockGPIODLine in
// src/ptt_test.go.
type fakeModemLiner struct {
	enabled serial.ModemLine
	closed  bool
}

func (f *fakeModemLiner) EnableModemLines(line serial.ModemLine) error {
	f.enabled |= line
	return nil
}

func (f *fakeModemLiner) DisableModemLines(line serial.ModemLine) error {
	f.enabled &^= line
	return nil
}

func (f *fakeModemLiner) Close() error {
	f.closed = true
	return nil
}

func TestSerialKeyerKeyAssertsRTS(t *testing.T) {
	fake := &fakeModemLiner{}
	k, err := newSerialKeyer(fake, LineRTS, false)
	require.NoError(t, err)

	require.NoError(t, k.Key(context.Background()))
	assert.Equal(t, serial.TIOCM_RTS, fake.enabled&serial.TIOCM_RTS)

	require.NoError(t, k.Unkey(context.Background()))
	assert.Equal(t, serial.ModemLine(0), fake.enabled&serial.TIOCM_RTS)
}

func TestSerialKeyerInvertFlipsAssertion(t *testing.T) {
	fake := &fakeModemLiner{}
	k, err := newSerialKeyer(fake, LineDTR, true)
	require.NoError(t, err)

	require.NoError(t, k.Key(context.Background()))
	assert.Equal(t, serial.ModemLine(0), fake.enabled&serial.TIOCM_DTR, "inverted key should leave the line low")

	require.NoError(t, k.Unkey(context.Background()))
	assert.Equal(t, serial.TIOCM_DTR, fake.enabled&serial.TIOCM_DTR, "inverted unkey should raise the line")
}

func TestSerialKeyerClose(t *testing.T) {
	fake := &fakeModemLiner{}
	k, err := newSerialKeyer(fake, LineRTS, false)
	require.NoError(t, err)

	require.NoError(t, k.Close())
	assert.True(t, fake.closed)
}
