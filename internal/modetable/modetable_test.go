package modetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookupAllModes(t *testing.T) {
	cases := []struct {
		mode    Mode
		payload int
	}{
		{DATAC13, 14},
		{DATAC4, 54},
		{DATAC3, 126},
		{DATAC1, 510},
	}
	for _, tc := range cases {
		got := Lookup(tc.mode)
		assert.Equal(t, tc.payload, got.PayloadBytes, tc.mode.String())
		assert.Greater(t, got.AckTimeout, got.FrameDuration)
		assert.Greater(t, got.RetryInterval, got.AckTimeout)
	}
}

func TestLookupOutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() {
		Lookup(Mode(99))
	})
}

func TestModeStringNames(t *testing.T) {
	assert.Equal(t, "DATAC13", DATAC13.String())
	assert.Equal(t, "DATAC4", DATAC4.String())
	assert.Equal(t, "DATAC3", DATAC3.String())
	assert.Equal(t, "DATAC1", DATAC1.String())
}

func TestSpeedLadderOrder(t *testing.T) {
	assert.Equal(t, [3]Mode{DATAC4, DATAC3, DATAC1}, SpeedLadder)
}

func TestAuxiliaryConstants(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, ChannelGuard)
	assert.Equal(t, 20*time.Second, KeepaliveInterval)
	assert.Equal(t, 5, KeepaliveMissLimit)
}
