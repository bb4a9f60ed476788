package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"proctorcam/internal/alert"
	"proctorcam/internal/logger"
	"proctorcam/internal/metrics"
	"proctorcam/internal/model"
	"proctorcam/internal/service/stream"
)

type options struct {
	alert   alert.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	events  EventSink
	frames  *stream.Broadcaster
	clock   func() time.Time
}

// Option configures a Monitor.
type Option func(*options)

// WithAlertConfig sets thresholds and the attention policy.
func WithAlertConfig(cfg alert.Config) Option {
	return func(o *options) { o.alert = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEventSink sets where alert and session events go.
func WithEventSink(s EventSink) Option {
	return func(o *options) { o.events = s }
}

// WithBroadcaster sets the frame fan-out used for the video stream.
func WithBroadcaster(b *stream.Broadcaster) Option {
	return func(o *options) { o.frames = b }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Monitor is the session object. It owns the alert engine, the announced
// status and the frame fan-out; the HTTP layer reads it concurrently.
type Monitor[F Frame] struct {
	source   Source[F]
	analyzer Analyzer[F]
	renderer Renderer[F]
	enricher Enrichment

	events  EventSink
	frames  *stream.Broadcaster
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// engineMu serializes Update and Reset; mu guards session.
	engineMu sync.Mutex
	engine   *alert.Engine

	mu      sync.RWMutex
	session Session
}

// New creates a Monitor. enricher may be nil to run on local signals only.
func New[F Frame](source Source[F], analyzer Analyzer[F], renderer Renderer[F], enricher Enrichment, opts ...Option) (*Monitor[F], error) {
	o := options{alert: alert.DefaultConfig(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.alert.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alert config: %w", err)
	}
	if o.logger == nil {
		o.logger = logger.Discard()
	}
	if o.frames == nil {
		o.frames = stream.NewBroadcaster(o.logger, o.metrics)
	}

	m := &Monitor[F]{
		source:   source,
		analyzer: analyzer,
		renderer: renderer,
		enricher: enricher,
		events:   o.events,
		frames:   o.frames,
		logger:   o.logger,
		metrics:  o.metrics,
		now:      o.clock,
		engine:   alert.NewEngine(o.alert),
	}

	now := m.now()
	m.session = Session{
		ID:        uuid.NewString(),
		StartedAt: now,
		Status:    statusOf(alert.None, now),
		Remote:    RemoteInfo{Enabled: enricher != nil},
	}
	return m, nil
}

// Run reads and processes frames until ctx is cancelled or the source fails.
// Viewers see end-of-stream when Run returns.
func (m *Monitor[F]) Run(ctx context.Context) error {
	defer m.frames.Close()

	m.setRunning(true, "")
	m.logger.Info("🎥 Monitoring session %s started", m.SessionID())

	for {
		select {
		case <-ctx.Done():
			m.setRunning(false, "")
			m.logger.Info("🎥 Monitoring stopped")
			return ctx.Err()
		default:
		}

		frame, err := m.source.Read()
		if err != nil {
			m.setRunning(false, err.Error())
			m.logger.Error("Capture failed, ending session: %v", err)
			m.emit(EventSessionEnded, alert.None, m.Status())
			return fmt.Errorf("%w: %w", ErrStreamEnded, err)
		}

		if err := m.process(frame); err != nil {
			m.logger.Warning("Skipping frame: %v", err)
		}
		frame.Close()
	}
}

// process handles one frame. The copy for remote enrichment is taken before
// anything is drawn on the frame.
func (m *Monitor[F]) process(frame F) error {
	if m.enricher != nil {
		m.enricher.Submit(frame.Clone())
	}

	obs, err := m.analyzer.Analyze(frame)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	var remote model.RemoteResult
	if m.enricher != nil {
		remote = m.enricher.Result()
	}

	now := m.now()
	m.engineMu.Lock()
	decision := m.engine.Update(obs, remote)
	status := m.record(decision, obs, remote, now)
	m.engineMu.Unlock()

	m.metrics.FrameProcessed()
	m.metrics.SetTimers(decision.State.Absence, decision.State.Intruder, decision.State.Attention)

	if decision.Changed {
		m.metrics.AlertTransition(decision.Announced.String())
		if decision.Announced == alert.None {
			m.logger.Info("✅ Alert cleared (was %s)", decision.Previous)
		} else {
			m.logger.Warning("%s", decision.Announced.Message())
		}
		m.emit(EventAlert, decision.Previous, status)
	}

	if m.frames.Viewers() == 0 {
		return nil
	}

	overlay := model.Overlay{
		Faces:     obs.Faces,
		Message:   status.Message,
		Alerting:  decision.Announced != alert.None,
		Timestamp: now,
	}
	if decision.Object != nil {
		object := *decision.Object
		object.Box = remote.ToFrame(object.Box)
		overlay.Object = &object
	}

	jpeg, err := m.renderer.Render(frame, overlay)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	m.frames.Publish(jpeg)
	return nil
}

func (m *Monitor[F]) record(d alert.Decision, obs model.Observation, remote model.RemoteResult, now time.Time) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session.Frames++
	m.session.FaceCount = obs.FaceCount()
	m.session.Timers = d.State
	m.session.Status = statusOf(d.Announced, now)
	m.session.Remote.Predictions = len(remote.Predictions)
	if remote.Empty() {
		m.session.Remote.UpdatedAt = nil
	} else {
		updated := remote.UpdatedAt
		m.session.Remote.UpdatedAt = &updated
	}
	return m.session.Status
}

func (m *Monitor[F]) emit(eventType string, previous alert.Kind, status Status) {
	if m.events == nil {
		return
	}

	event := Event{Type: eventType, SessionID: m.SessionID(), Status: status}
	if eventType == EventAlert {
		event.Previous = previous.String()
	}
	msg, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to encode event: %v", err)
		return
	}
	m.events.Broadcast(msg)
}

func (m *Monitor[F]) setRunning(running bool, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Running = running
	m.session.Error = errMsg
}

// Status returns the announced alert.
func (m *Monitor[F]) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Status
}

// SessionID returns the current session id.
func (m *Monitor[F]) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.ID
}

// Session returns a snapshot of the session.
func (m *Monitor[F]) Session() Session {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if s.Remote.UpdatedAt != nil {
		updated := *s.Remote.UpdatedAt
		s.Remote.UpdatedAt = &updated
		s.Remote.AgeSeconds = m.now().Sub(updated).Seconds()
	}
	return s
}

// Reset starts a new session: fresh id, cleared counters and announcement.
// The capture loop keeps running.
func (m *Monitor[F]) Reset() Session {
	m.engineMu.Lock()
	m.engine.Reset()

	now := m.now()
	m.mu.Lock()
	previous := m.session.ID
	m.session = Session{
		ID:        uuid.NewString(),
		StartedAt: now,
		Status:    statusOf(alert.None, now),
		Remote:    RemoteInfo{Enabled: m.enricher != nil},
		Running:   m.session.Running,
		Error:     m.session.Error,
	}
	status := m.session.Status
	m.mu.Unlock()
	m.engineMu.Unlock()

	m.metrics.SessionReset()
	m.metrics.SetTimers(0, 0, 0)
	m.logger.Info("🔄 Session %s reset, new session %s", previous, m.SessionID())
	m.emit(EventSessionReset, alert.None, status)
	return m.Session()
}

// Subscribe registers a video viewer.
func (m *Monitor[F]) Subscribe() (int, <-chan []byte) {
	return m.frames.Subscribe()
}

// Unsubscribe removes a video viewer.
func (m *Monitor[F]) Unsubscribe(id int) {
	m.frames.Unsubscribe(id)
}

// Close releases the frame source.
func (m *Monitor[F]) Close() error {
	return m.source.Close()
}
