// Package metrics provides observability primitives for the shroud secure transport library.
//
// The package includes:
//   - Counter, Gauge, and Histogram metric types
//   - Prometheus-compatible metrics export
//   - OpenTelemetry tracing support
//   - Structured logging with levels
//   - Health check functionality
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics from secure sessions and transports.
type Collector struct {
	// Session metrics
	sessionsActive   atomic.Uint64
	sessionsTotal    atomic.Uint64
	sessionsFailed   atomic.Uint64
	handshakeLatency *Histogram

	// Traffic metrics
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	framesSealed  atomic.Uint64
	framesOpened  atomic.Uint64

	// Security metrics
	replayAttacksBlocked atomic.Uint64
	authFailures         atomic.Uint64
	rekeysInitiated      atomic.Uint64
	rekeysCompleted      atomic.Uint64
	rekeysFailed         atomic.Uint64

	// Error metrics
	sealErrors     atomic.Uint64
	openErrors     atomic.Uint64
	protocolErrors atomic.Uint64

	// Performance histograms
	sealLatency *Histogram
	openLatency *Histogram

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		sealLatency:      NewHistogram(LatencyBuckets),
		openLatency:      NewHistogram(LatencyBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// Default bucket configurations for histograms.
var (
	// HandshakeLatencyBuckets for handshake duration (milliseconds).
	HandshakeLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// LatencyBuckets for seal/open operations (microseconds).
	LatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

// --- Session Metrics ---

// SessionStarted increments active and total session counters.
func (c *Collector) SessionStarted() {
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionEnded decrements active session counter.
func (c *Collector) SessionEnded() {
	for {
		current := c.sessionsActive.Load()
		if current == 0 {
			return
		}
		if c.sessionsActive.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// SessionFailed records a failed session attempt.
func (c *Collector) SessionFailed() {
	c.sessionsFailed.Add(1)
}

// RecordHandshakeLatency records a handshake duration.
func (c *Collector) RecordHandshakeLatency(d time.Duration) {
	c.handshakeLatency.Observe(float64(d.Milliseconds()))
}

// --- Traffic Metrics ---

// RecordBytesSent adds to the bytes sent counter.
func (c *Collector) RecordBytesSent(n uint64) {
	c.bytesSent.Add(n)
}

// RecordBytesReceived adds to the bytes received counter.
func (c *Collector) RecordBytesReceived(n uint64) {
	c.bytesReceived.Add(n)
}

// RecordFrameSealed increments the sealed frame counter.
func (c *Collector) RecordFrameSealed() {
	c.framesSealed.Add(1)
}

// RecordFrameOpened increments the opened frame counter.
func (c *Collector) RecordFrameOpened() {
	c.framesOpened.Add(1)
}

// --- Security Metrics ---

// RecordReplayBlocked increments the replay attack counter.
func (c *Collector) RecordReplayBlocked() {
	c.replayAttacksBlocked.Add(1)
}

// RecordAuthFailure increments the authentication failure counter.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Add(1)
}

// RecordRekeyInitiated records a rekey initiation.
func (c *Collector) RecordRekeyInitiated() {
	c.rekeysInitiated.Add(1)
}

// RecordRekeyCompleted records a successful rekey completion.
func (c *Collector) RecordRekeyCompleted() {
	c.rekeysCompleted.Add(1)
}

// RecordRekeyFailed records a failed rekey attempt.
func (c *Collector) RecordRekeyFailed() {
	c.rekeysFailed.Add(1)
}

// --- Error Metrics ---

// RecordSealError increments the seal error counter.
func (c *Collector) RecordSealError() {
	c.sealErrors.Add(1)
}

// RecordOpenError increments the open error counter.
func (c *Collector) RecordOpenError() {
	c.openErrors.Add(1)
}

// RecordProtocolError increments protocol error counter.
func (c *Collector) RecordProtocolError() {
	c.protocolErrors.Add(1)
}

// --- Performance Metrics ---

// RecordSealLatency records seal operation latency.
func (c *Collector) RecordSealLatency(d time.Duration) {
	c.sealLatency.Observe(float64(d.Microseconds()))
}

// RecordOpenLatency records open operation latency.
func (c *Collector) RecordOpenLatency(d time.Duration) {
	c.openLatency.Observe(float64(d.Microseconds()))
}

// --- Snapshot ---

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Session metrics
	SessionsActive uint64
	SessionsTotal  uint64
	SessionsFailed uint64

	// Traffic metrics
	BytesSent     uint64
	BytesReceived uint64
	FramesSealed  uint64
	FramesOpened  uint64

	// Security metrics
	ReplayAttacksBlocked uint64
	AuthFailures         uint64
	RekeysInitiated      uint64
	RekeysCompleted      uint64
	RekeysFailed         uint64

	// Error metrics
	SealErrors     uint64
	OpenErrors     uint64
	ProtocolErrors uint64

	// Histogram summaries
	HandshakeLatency HistogramSummary
	SealLatency      HistogramSummary
	OpenLatency      HistogramSummary

	// Labels
	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:            time.Now(),
		Uptime:               time.Since(c.createdAt),
		SessionsActive:       c.sessionsActive.Load(),
		SessionsTotal:        c.sessionsTotal.Load(),
		SessionsFailed:       c.sessionsFailed.Load(),
		BytesSent:            c.bytesSent.Load(),
		BytesReceived:        c.bytesReceived.Load(),
		FramesSealed:         c.framesSealed.Load(),
		FramesOpened:         c.framesOpened.Load(),
		ReplayAttacksBlocked: c.replayAttacksBlocked.Load(),
		AuthFailures:         c.authFailures.Load(),
		RekeysInitiated:      c.rekeysInitiated.Load(),
		RekeysCompleted:      c.rekeysCompleted.Load(),
		RekeysFailed:         c.rekeysFailed.Load(),
		SealErrors:           c.sealErrors.Load(),
		OpenErrors:           c.openErrors.Load(),
		ProtocolErrors:       c.protocolErrors.Load(),
		HandshakeLatency:     c.handshakeLatency.Summary(),
		SealLatency:          c.sealLatency.Summary(),
		OpenLatency:          c.openLatency.Summary(),
		Labels:               c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.sessionsActive.Store(0)
	c.sessionsTotal.Store(0)
	c.sessionsFailed.Store(0)
	c.bytesSent.Store(0)
	c.bytesReceived.Store(0)
	c.framesSealed.Store(0)
	c.framesOpened.Store(0)
	c.replayAttacksBlocked.Store(0)
	c.authFailures.Store(0)
	c.rekeysInitiated.Store(0)
	c.rekeysCompleted.Store(0)
	c.rekeysFailed.Store(0)
	c.sealErrors.Store(0)
	c.openErrors.Store(0)
	c.protocolErrors.Store(0)
	c.handshakeLatency.Reset()
	c.sealLatency.Reset()
	c.openLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
