package ptt

import (
	"context"
	"fmt"

	"github.com/xylo04/goHamlib"
)

// HamlibKeyer keys PTT through a rigctld-capable radio via goHamlib,
// replacing the teacher's cgo binding straight into libhamlib (src/ptt.go's
// "ptt RIG 2 115200" directive) with the pure-Go wrapper.
type HamlibKeyer struct {
	rig *goHamlib.Rig
	vfo goHamlib.VFO
}

// NewHamlibKeyer opens rig model on device at baud and readies it for PTT
// control on vfo.
func NewHamlibKeyer(model goHamlib.RigModel, device string, baud int, vfo goHamlib.VFO) (*HamlibKeyer, error) {
	rig := goHamlib.NewRig(model)
	rig.SetConf("rig_pathname", device)
	rig.SetConf("serial_speed", fmt.Sprintf("%d", baud))
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("ptt: open hamlib rig: %w", err)
	}
	return &HamlibKeyer{rig: rig, vfo: vfo}, nil
}

func (k *HamlibKeyer) Key(ctx context.Context) error {
	return k.rig.SetPTT(k.vfo, goHamlib.PTTOn)
}

func (k *HamlibKeyer) Unkey(ctx context.Context) error {
	return k.rig.SetPTT(k.vfo, goHamlib.PTTOff)
}

func (k *HamlibKeyer) Close() error {
	return k.rig.Close()
}
