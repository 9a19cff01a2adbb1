package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is the optional YAML file --config points at. Any of my_call,
// base_port and the audio_* fields that is present overrides the
// corresponding flag default/value, letting a station keep its
// radio-specific settings out of the invocation line. The ptt block is
// parsed and returned but not applied to Config.
type Overlay struct {
	MyCall   string `yaml:"my_call"`
	BasePort int    `yaml:"base_port"`
	AudioIn  string `yaml:"audio_in"`
	AudioOut string `yaml:"audio_out"`
	AudioAPI string `yaml:"audio_api"`
	PTT      struct {
		Backend string `yaml:"backend"` // gpio|serial|hamlib|none
		Device  string `yaml:"device"`
		Line    string `yaml:"line"`   // rts|dtr, for backend=serial
		Invert  bool   `yaml:"invert"`
	} `yaml:"ptt"`
}

// LoadOverlay reads and parses path, applying any set my_call, base_port and
// audio_* fields onto cfg.
func LoadOverlay(path string, cfg *Config) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read config overlay %s: %w", path, err)
	}
	var ov Overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("cli: parse config overlay %s: %w", path, err)
	}
	if ov.MyCall != "" {
		cfg.MyCall = ov.MyCall
	}
	if ov.BasePort != 0 {
		cfg.BasePort = ov.BasePort
	}
	if ov.AudioIn != "" {
		cfg.AudioIn = ov.AudioIn
	}
	if ov.AudioOut != "" {
		cfg.AudioOut = ov.AudioOut
	}
	if ov.AudioAPI != "" {
		cfg.AudioAPI = ov.AudioAPI
	}
	return &ov, nil
}
