// Package timing implements the per-session timing recorder from spec §3,
// grounded on original_source/datalink_arq/arq_timing.h's arq_timing_ctx_t
// and record_* API. Recorder has no internal locking: the event-loop
// goroutine records DATA arrival and ACK delay, the modem TX worker records
// TX start/end, and each writes its own fields. It publishes into prometheus
// gauges/counters on every record_* call, giving spec §3's "produces
// structured telemetry" a concrete sink per SPEC_FULL.md §2.1.
package timing

import "github.com/prometheus/client_golang/prometheus"

// Sample holds the per-seq fields spec §3 names, plus their derived values.
type Sample struct {
	TxQueueMs  int64
	TxStartMs  int64
	TxEndMs    int64
	AckRxMs    int64
	DataRxMs   int64
	AckTxStart int64

	RTTMs      int64
	AckDelayMs int64
}

// Recorder accumulates per-session timing samples and cumulative counters,
// and mirrors them into prometheus metrics.
type Recorder struct {
	last Sample

	TxBytes     uint64
	RxBytes     uint64
	RetriesTotal uint64
	FramesTx    uint64
	FramesRx    uint64

	metrics *Metrics
	call    string
}

// NewRecorder binds a Recorder to the shared process Metrics, tagging
// published samples with the session's local callsign.
func NewRecorder(metrics *Metrics, localCall string) *Recorder {
	return &Recorder{metrics: metrics, call: localCall}
}

// RecordTxQueue records when a frame was enqueued for transmission.
func (r *Recorder) RecordTxQueue(nowMs int64) {
	r.last.TxQueueMs = nowMs
}

// RecordTxStart records TX_STARTED for the current frame.
func (r *Recorder) RecordTxStart(nowMs int64) {
	r.last.TxStartMs = nowMs
}

// RecordTxEnd records TX_COMPLETE and updates cumulative frame/byte counters.
func (r *Recorder) RecordTxEnd(nowMs int64, frameBytes int) {
	r.last.TxEndMs = nowMs
	r.TxBytes += uint64(frameBytes)
	r.FramesTx++
	if r.metrics != nil {
		r.metrics.FramesTx.WithLabelValues(r.call).Inc()
		r.metrics.TxBytes.WithLabelValues(r.call).Add(float64(frameBytes))
	}
}

// RecordAckRx records arrival of the ACK for the outstanding frame and
// derives RTT = (ack_rx_ms - tx_start_ms) - decoded_ack_delay_ms, per spec
// §4.4's WAIT_ACK transition.
func (r *Recorder) RecordAckRx(nowMs int64, ackDelayMs int64) {
	r.last.AckRxMs = nowMs
	r.last.AckDelayMs = ackDelayMs
	r.last.RTTMs = (nowMs - r.last.TxStartMs) - ackDelayMs
	if r.last.RTTMs < 0 {
		r.last.RTTMs = 0
	}
	if r.metrics != nil {
		r.metrics.RTTMs.WithLabelValues(r.call).Observe(float64(r.last.RTTMs))
	}
}

// RecordDataRx records arrival of a data frame; core.Loop calls it for every
// RX_DATA event, duplicates and out-of-order frames included.
func (r *Recorder) RecordDataRx(nowMs int64, payloadBytes int) {
	r.last.DataRxMs = nowMs
	r.RxBytes += uint64(payloadBytes)
	r.FramesRx++
	if r.metrics != nil {
		r.metrics.FramesRx.WithLabelValues(r.call).Inc()
		r.metrics.RxBytes.WithLabelValues(r.call).Add(float64(payloadBytes))
	}
}

// RecordAckTx records the start of building an ACK, used to compute the
// ack_delay_raw this side advertises to the peer.
func (r *Recorder) RecordAckTx(nowMs int64) int64 {
	r.last.AckTxStart = nowMs
	delay := nowMs - r.last.DataRxMs
	if delay < 0 {
		delay = 0
	}
	return delay
}

// RecordRetry increments the cumulative retry counter.
func (r *Recorder) RecordRetry() {
	r.RetriesTotal++
	if r.metrics != nil {
		r.metrics.Retries.WithLabelValues(r.call).Inc()
	}
}

// RecordTurn logs a role-turn event to telemetry (no state kept beyond the
// counter bump the caller is expected to make on Session).
func (r *Recorder) RecordTurn() {
	if r.metrics != nil {
		r.metrics.Turns.WithLabelValues(r.call).Inc()
	}
}

// RecordConnect marks a successful CONNECTED transition.
func (r *Recorder) RecordConnect() {
	if r.metrics != nil {
		r.metrics.Connects.WithLabelValues(r.call).Inc()
	}
}

// RecordDisconnect marks entry to DISCONNECTED.
func (r *Recorder) RecordDisconnect() {
	if r.metrics != nil {
		r.metrics.Disconnects.WithLabelValues(r.call).Inc()
	}
}

// Last returns the most recent per-seq sample, mainly for logging/debugging.
func (r *Recorder) Last() Sample {
	return r.last
}

// Metrics is the set of prometheus collectors the Recorder feeds. It is
// created once per process and registered against a single Registry, per
// SPEC_FULL.md §2.1 ("this repo owns only the metric definitions and
// updates, not the collector").
type Metrics struct {
	FramesTx    *prometheus.CounterVec
	FramesRx    *prometheus.CounterVec
	TxBytes     *prometheus.CounterVec
	RxBytes     *prometheus.CounterVec
	Retries     *prometheus.CounterVec
	Turns       *prometheus.CounterVec
	Connects    *prometheus.CounterVec
	Disconnects *prometheus.CounterVec
	RTTMs       *prometheus.HistogramVec
}

// NewMetrics builds and registers the HERMES timing metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	labels := []string{"call"}
	m := &Metrics{
		FramesTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "frames_tx_total",
			Help: "ARQ frames transmitted.",
		}, labels),
		FramesRx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "frames_rx_total",
			Help: "ARQ frames received.",
		}, labels),
		TxBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "tx_bytes_total",
			Help: "Bytes transmitted across ARQ frames.",
		}, labels),
		RxBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "rx_bytes_total",
			Help: "Bytes received across ARQ frames.",
		}, labels),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "retries_total",
			Help: "Frame retransmissions.",
		}, labels),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "turns_total",
			Help: "ISS/IRS role turns.",
		}, labels),
		Connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "connects_total",
			Help: "Successful connection establishments.",
		}, labels),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "disconnects_total",
			Help: "Connection teardowns.",
		}, labels),
		RTTMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hermes", Subsystem: "arq", Name: "rtt_milliseconds",
			Help:    "Observed round-trip time per ACK.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
		}, labels),
	}
	reg.MustRegister(m.FramesTx, m.FramesRx, m.TxBytes, m.RxBytes, m.Retries,
		m.Turns, m.Connects, m.Disconnects, m.RTTMs)
	return m
}
