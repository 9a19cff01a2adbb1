package ptt

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// gpioLiner is the slice of *gpiocdev.Line this package depends on, split
// out so tests can substitute a recording fake, mirroring the teacher's
// mockGPIODLine in src/ptt_test.go.
type gpioLiner interface {
	SetValue(v int) error
	Close() error
}

// GPIOKeyer keys PTT via a single GPIO line on a Linux gpiochip, the
// gpiocdev-based replacement for the teacher's /sys/class/gpio sysfs
// writes in src/ptt.go's ptt_set_gpio.
type GPIOKeyer struct {
	line   gpioLiner
	invert bool
	chip   string
	offset int
}

// NewGPIOKeyer requests offset on chip (e.g. "gpiochip0") as an output,
// initially de-asserted. invert swaps active-high/active-low, mirroring the
// teacher's "ptt gpio N invert" config syntax.
func NewGPIOKeyer(chip string, offset int, invert bool) (*GPIOKeyer, error) {
	initial := 0
	if invert {
		initial = 1
	}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(initial),
		gpiocdev.WithConsumer("hermes-ptt"),
	)
	if err != nil {
		return nil, fmt.Errorf("ptt: request gpio line %s:%d: %w", chip, offset, err)
	}
	return &GPIOKeyer{line: line, invert: invert, chip: chip, offset: offset}, nil
}

func (k *GPIOKeyer) Key(ctx context.Context) error {
	return k.setValue(!k.invert)
}

func (k *GPIOKeyer) Unkey(ctx context.Context) error {
	return k.setValue(k.invert)
}

func (k *GPIOKeyer) setValue(asserted bool) error {
	v := 0
	if asserted {
		v = 1
	}
	return k.line.SetValue(v)
}

func (k *GPIOKeyer) Close() error {
	return k.line.Close()
}
