package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackBackendRoundTrip(t *testing.T) {
	l := NewLoopbackBackend(64)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sent := []int16{1, 2, 3, 4, 5}
	require.NoError(t, l.WriteSamples(ctx, sent))

	got := make([]int16, len(sent))
	n, err := l.ReadSamples(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, len(sent), n)
	assert.Equal(t, sent, got)
}

func TestLoopbackBackendClose(t *testing.T) {
	l := NewLoopbackBackend(8)
	require.NoError(t, l.Close())
	assert.True(t, l.closed)
}
