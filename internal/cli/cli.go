// Package cli parses the hermesd process flags spec §6 lists, using
// spf13/pflag the way the teacher's cmd/* binaries do for their own flag
// sets (e.g. cmd/direwolf's getopt-style -c/-d/-t/-T flags rendered
// through pflag in this Go port).
package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds every flag value spec §6 and its extensions define.
type Config struct {
	AudioIn  string // -i
	AudioOut string // -o
	AudioAPI string // -x
	BasePort int    // -p
	Bcast    int    // -b
	Mode     int    // -m
	CPU      int    // -c
	List     bool   // -l
	ListCard bool   // -z
	Verbose  int    // -v (repeatable)
	ModemLog int     // -f
	Channel  string // -k

	MyCall     string // -s, carried from original_source/main.c's option parsing
	ConfigPath string // --config
}

// validAudioAPIs enumerates -x's closed set.
var validAudioAPIs = map[string]bool{
	"alsa": true, "pulse": true, "dsound": true, "wasapi": true,
	"oss": true, "coreaudio": true, "shm": true,
}

// validChannels enumerates -k's closed set.
var validChannels = map[string]bool{"left": true, "right": true, "stereo": true}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("hermesd", pflag.ContinueOnError)
	cfg := &Config{}

	fs.StringVarP(&cfg.AudioIn, "audio-in", "i", "", "audio input device identifier")
	fs.StringVarP(&cfg.AudioOut, "audio-out", "o", "", "audio output device identifier")
	fs.StringVarP(&cfg.AudioAPI, "audio-api", "x", "alsa", "audio API: alsa|pulse|dsound|wasapi|oss|coreaudio|shm")
	fs.IntVarP(&cfg.BasePort, "base-port", "p", 8300, "TCP base port (control=base, data=base+1)")
	fs.IntVarP(&cfg.Bcast, "broadcast-port", "b", 0, "KISS broadcast UDP port (0 disables)")
	fs.IntVarP(&cfg.Mode, "mode", "m", 1, "starting mode index (0=DATAC13 .. 3=DATAC1)")
	fs.IntVarP(&cfg.CPU, "cpu", "c", -1, "CPU affinity (-1 = unset)")
	fs.BoolVarP(&cfg.List, "list-modes", "l", false, "list modes and exit")
	fs.BoolVarP(&cfg.ListCard, "list-cards", "z", false, "list soundcards and exit")
	count := fs.CountP("verbose", "v", "increase logging verbosity")
	fs.IntVarP(&cfg.ModemLog, "modem-verbosity", "f", 0, "modem verbosity (0..3)")
	fs.StringVarP(&cfg.Channel, "channel", "k", "stereo", "capture channel: left|right|stereo")
	fs.StringVarP(&cfg.MyCall, "call", "s", "", "station callsign (MYCALL), if not set interactively")
	fs.StringVar(&cfg.ConfigPath, "config", "", "optional YAML config overlay")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Verbose = *count

	if !validAudioAPIs[cfg.AudioAPI] {
		return nil, fmt.Errorf("cli: invalid -x audio API %q", cfg.AudioAPI)
	}
	if !validChannels[cfg.Channel] {
		return nil, fmt.Errorf("cli: invalid -k channel %q", cfg.Channel)
	}
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("cli: invalid -m mode index %d", cfg.Mode)
	}
	if cfg.ModemLog < 0 || cfg.ModemLog > 3 {
		return nil, fmt.Errorf("cli: invalid -f modem verbosity %d", cfg.ModemLog)
	}
	return cfg, nil
}
