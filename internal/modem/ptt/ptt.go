// Package ptt drives the push-to-talk control line. The teacher's src/ptt.go
// supports a half dozen PTT transports behind one dispatch switch (serial
// RTS/DTR, GPIO sysfs, parallel port, CM108 HID, HAMLIB); we keep that
// multi-backend shape but implement it with real Go libraries instead of
// cgo calls into libgpiod/hamlib, since this module has no C layer to link
// against.
package ptt

import "context"

// Keyer keys and unkeys a single PTT line. Implementations must be safe to
// call from the modem's single TX worker goroutine only; no internal
// locking is required.
type Keyer interface {
	// Key asserts PTT (keys the transmitter).
	Key(ctx context.Context) error
	// Unkey de-asserts PTT.
	Unkey(ctx context.Context) error
	// Close releases the underlying device.
	Close() error
}

// NullKeyer is a Keyer that does nothing, used by hermesd (which wires no
// other Keyer) and in tests.
type NullKeyer struct{}

func (NullKeyer) Key(context.Context) error   { return nil }
func (NullKeyer) Unkey(context.Context) error { return nil }
func (NullKeyer) Close() error                { return nil }
