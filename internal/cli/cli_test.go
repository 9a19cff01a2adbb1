package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 8300, cfg.BasePort)
	assert.Equal(t, "alsa", cfg.AudioAPI)
	assert.Equal(t, "stereo", cfg.Channel)
	assert.Equal(t, 1, cfg.Mode)
}

func TestParseRejectsInvalidAudioAPI(t *testing.T) {
	_, err := Parse([]string{"-x", "bogus"})
	assert.Error(t, err)
}

func TestParseRejectsInvalidMode(t *testing.T) {
	_, err := Parse([]string{"-m", "9"})
	assert.Error(t, err)
}

func TestParseVerboseIsRepeatable(t *testing.T) {
	cfg, err := Parse([]string{"-v", "-v", "-v"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Verbose)
}

func TestParseCallFlag(t *testing.T) {
	cfg, err := Parse([]string{"-s", "pu2uit"})
	require.NoError(t, err)
	assert.Equal(t, "pu2uit", cfg.MyCall)
}

func TestLoadOverlayAppliesSetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hermes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("my_call: PU2UIT\nbase_port: 9000\n"), 0o644))

	cfg := &Config{BasePort: 8300, AudioAPI: "alsa"}
	ov, err := LoadOverlay(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, "PU2UIT", ov.MyCall)
	assert.Equal(t, "PU2UIT", cfg.MyCall)
	assert.Equal(t, 9000, cfg.BasePort)
	assert.Equal(t, "alsa", cfg.AudioAPI, "unset overlay fields must not clobber the existing value")
}
