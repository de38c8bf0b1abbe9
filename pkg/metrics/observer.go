package metrics

import (
	"context"
	"encoding/hex"
	"time"
)

// SessionObserver provides observability hooks for session operations.
// Attach this to a session to automatically record metrics and traces.
type SessionObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
	sessionID string
	role      string
}

// SessionObserverConfig configures a session observer.
type SessionObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
	SessionID []byte
	Role      string // "initiator" or "responder"
}

// NewSessionObserver creates a new session observer.
func NewSessionObserver(cfg SessionObserverConfig) *SessionObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	sessionID := ""
	if len(cfg.SessionID) > 0 {
		sessionID = hex.EncodeToString(cfg.SessionID[:min(8, len(cfg.SessionID))])
	}

	return &SessionObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger: cfg.Logger.Named("session").With(Fields{
			"session_id": sessionID,
			"role":       cfg.Role,
		}),
		sessionID: sessionID,
		role:      cfg.Role,
	}
}

// OnSessionStart should be called when a new session is created.
func (o *SessionObserver) OnSessionStart() {
	o.collector.SessionStarted()
	o.logger.Info("session started")
}

// OnSessionEnd should be called when a session ends.
func (o *SessionObserver) OnSessionEnd() {
	o.collector.SessionEnded()
	o.logger.Info("session ended")
}

// OnSessionFailed should be called when a session fails to establish.
func (o *SessionObserver) OnSessionFailed(err error) {
	o.collector.SessionFailed()
	o.logger.Error("session failed", Fields{"error": err.Error()})
}

// OnHandshakeStart returns a context and completion function for handshake tracing.
func (o *SessionObserver) OnHandshakeStart(ctx context.Context) (context.Context, func(error)) {
	spanName := SpanHandshakeInitiator
	if o.role == "responder" {
		spanName = SpanHandshakeResponder
	}

	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, spanName, WithSpanKind(SpanKindServer))

	o.logger.Debug("handshake started")

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordHandshakeLatency(duration)

		if err != nil {
			o.logger.Error("handshake failed", Fields{
				"error":    err.Error(),
				"duration": duration.String(),
			})
		} else {
			o.logger.Info("handshake completed", Fields{
				"duration": duration.String(),
			})
		}

		endSpan(err)
	}
}

// OnSeal records frame seal metrics.
func (o *SessionObserver) OnSeal(ctx context.Context, plaintextLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanSeal)

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordSealLatency(duration)

		if err != nil {
			o.collector.RecordSealError()
			o.logger.Debug("seal failed", Fields{"error": err.Error()})
		} else {
			o.collector.RecordBytesSent(uint64(plaintextLen))
			o.collector.RecordFrameSealed()
		}

		endSpan(err)
	}
}

// OnOpen records frame open metrics.
func (o *SessionObserver) OnOpen(ctx context.Context, ciphertextLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanOpen)

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordOpenLatency(duration)

		if err != nil {
			o.collector.RecordOpenError()
			o.logger.Debug("open failed", Fields{"error": err.Error()})
		} else {
			o.collector.RecordBytesReceived(uint64(ciphertextLen))
			o.collector.RecordFrameOpened()
		}

		endSpan(err)
	}
}

// OnReplayDetected records a blocked replay attack.
func (o *SessionObserver) OnReplayDetected() {
	o.collector.RecordReplayBlocked()
	o.logger.Warn("replay attack blocked")
}

// OnAuthFailure records an authentication failure.
func (o *SessionObserver) OnAuthFailure() {
	o.collector.RecordAuthFailure()
	o.logger.Warn("authentication failed")
}

// OnRekeyStart records the start of a rekey operation.
func (o *SessionObserver) OnRekeyStart(ctx context.Context) (context.Context, func(error)) {
	o.collector.RecordRekeyInitiated()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanRekey)

	o.logger.Debug("rekey initiated")

	return ctx, func(err error) {
		if err != nil {
			o.collector.RecordRekeyFailed()
			o.logger.Error("rekey failed", Fields{"error": err.Error()})
		} else {
			o.collector.RecordRekeyCompleted()
			o.logger.Info("rekey completed")
		}
		endSpan(err)
	}
}

// OnProtocolError records a protocol error.
func (o *SessionObserver) OnProtocolError(err error) {
	o.collector.RecordProtocolError()
	o.logger.Error("protocol error", Fields{"error": err.Error()})
}

// Logger returns the observer's logger for custom logging.
func (o *SessionObserver) Logger() *Logger {
	return o.logger
}

// --- Instrumented Wrappers ---

// InstrumentedSession wraps session metrics collection.
// This can be used to wrap seal/open calls.
type InstrumentedSession struct {
	observer *SessionObserver
}

// NewInstrumentedSession creates a new instrumented session wrapper.
func NewInstrumentedSession(observer *SessionObserver) *InstrumentedSession {
	return &InstrumentedSession{observer: observer}
}

// WrapSeal wraps a frame seal operation with metrics.
func (s *InstrumentedSession) WrapSeal(ctx context.Context, plaintextLen int, fn func() error) error {
	_, done := s.observer.OnSeal(ctx, plaintextLen)
	err := fn()
	done(err)
	return err
}

// WrapOpen wraps a frame open operation with metrics.
func (s *InstrumentedSession) WrapOpen(ctx context.Context, ciphertextLen int, fn func() error) error {
	_, done := s.observer.OnOpen(ctx, ciphertextLen)
	err := fn()
	done(err)
	return err
}

// --- Event Types ---

// EventType represents a type of session event for logging.
type EventType string

const (
	EventSessionStart   EventType = "session.start"
	EventSessionEnd     EventType = "session.end"
	EventSessionFailed  EventType = "session.failed"
	EventHandshakeStart EventType = "handshake.start"
	EventHandshakeEnd   EventType = "handshake.end"
	EventDataSent       EventType = "data.sent"
	EventDataReceived   EventType = "data.received"
	EventRekeyStart     EventType = "rekey.start"
	EventRekeyEnd       EventType = "rekey.end"
	EventReplayBlocked  EventType = "security.replay_blocked"
	EventAuthFailed     EventType = "security.auth_failed"
	EventError          EventType = "error"
)

// Event represents a structured session event.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// min returns the smaller of two integers.
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
