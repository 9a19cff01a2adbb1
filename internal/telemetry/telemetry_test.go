package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/timing"
)

func TestExporterServesMetrics(t *testing.T) {
	exp := NewExporter()
	timing.NewMetrics(exp.Registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- exp.Serve(ctx, "127.0.0.1:0") }()

	exp.Addr()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func TestExporterHandlerDirect(t *testing.T) {
	exp := NewExporter()
	timing.NewMetrics(exp.Registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- exp.Serve(ctx, "127.0.0.1:0") }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	addr := exp.Addr()
	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hermes_arq_frames_tx_total")
}
