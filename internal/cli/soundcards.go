package cli

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// SoundCard is one entry -z should print: an ALSA/sound subsystem device
// name and its udev sysname, enough for a user to pick an -i/-o argument.
type SoundCard struct {
	Sysname string
	Name    string
}

// ListSoundCards enumerates the "sound" subsystem via go-udev, the
// Go-native replacement for the teacher's "arecord -l"/"aplay -l" shellout
// suggestion in its audio device docs.
func ListSoundCards() ([]SoundCard, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("sound"); err != nil {
		return nil, fmt.Errorf("cli: udev match sound subsystem: %w", err)
	}
	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("cli: udev enumerate devices: %w", err)
	}
	var cards []SoundCard
	for _, d := range devices {
		name := d.PropertyValue("ID_MODEL")
		if name == "" {
			name = d.Sysname()
		}
		cards = append(cards, SoundCard{Sysname: d.Sysname(), Name: name})
	}
	return cards, nil
}
