// Package enrichment runs the remote object detector in the background,
// decoupled from the capture loop's frame rate.
package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proctorcam/internal/logger"
	"proctorcam/internal/metrics"
	"proctorcam/internal/model"
)

// Frame is an independent copy of a captured frame handed to the enricher.
// The enricher owns it after Submit and closes it once encoded or dropped.
type Frame interface {
	// Encode downscales to size x size and returns JPEG bytes.
	Encode(size int) ([]byte, error)
	Size() (width, height int)
	Close() error
}

// Detector is the remote object detection capability.
type Detector interface {
	Detect(ctx context.Context, jpeg []byte) ([]model.Prediction, error)
}

// Config controls the polling cadence.
type Config struct {
	InputSize  int
	Interval   time.Duration // wait after each cycle
	Timeout    time.Duration // per call, shorter than Interval
	BackoffMax time.Duration // cap for exponential backoff, 0 disables it
}

// Stats describes the enricher's recent behaviour.
type Stats struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastAttempt         time.Time `json:"last_attempt"`
	HandoffDrops        uint64    `json:"handoff_drops"`
}

// Enricher owns the latest-frame mailbox and the latest RemoteResult.
type Enricher struct {
	cfg      Config
	detector Detector
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mailbox Mailbox[Frame]

	mu          sync.RWMutex
	result      model.RemoteResult
	failures    int
	lastError   string
	lastAttempt time.Time
}

// New creates an enricher. Call Run to start polling.
func New(cfg Config, detector Detector, logger *logger.Logger, m *metrics.Metrics) *Enricher {
	return &Enricher{
		cfg:      cfg,
		detector: detector,
		logger:   logger,
		metrics:  m,
	}
}

// Submit hands a frame over, replacing any frame not yet sent. Never blocks
// on the network.
func (e *Enricher) Submit(f Frame) {
	old, dropped, err := e.mailbox.Put(f)
	if err != nil {
		// Loop already stopped.
		f.Close()
		return
	}
	if dropped {
		old.Close()
		e.metrics.HandoffDropped()
	}
}

// Result returns a copy of the latest successful detector response.
func (e *Enricher) Result() model.RemoteResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.result.Clone()
}

// Stats returns failure and hand-off information.
func (e *Enricher) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		ConsecutiveFailures: e.failures,
		LastError:           e.lastError,
		LastAttempt:         e.lastAttempt,
		HandoffDrops:        e.mailbox.Drops(),
	}
}

// Run polls until ctx is cancelled. Cycles run one after another, so two
// detector calls never overlap.
func (e *Enricher) Run(ctx context.Context) error {
	e.logger.Info("🔭 Remote detector loop started (interval %s, timeout %s)", e.cfg.Interval, e.cfg.Timeout)
	defer e.drain()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("🔭 Remote detector loop stopped")
			return ctx.Err()
		case <-timer.C:
		}

		e.Cycle(ctx)
		timer.Reset(e.nextDelay())
	}
}

// Cycle performs one poll: take the latest frame, call the detector and
// store the result. It reports whether a call was attempted. Failures keep
// the previous result.
func (e *Enricher) Cycle(ctx context.Context) (bool, error) {
	frame, ok := e.mailbox.Take()
	if !ok {
		e.metrics.OracleCall(metrics.OutcomeIdle, 0)
		return false, nil
	}
	defer frame.Close()

	width, height := frame.Size()
	jpeg, err := frame.Encode(e.cfg.InputSize)
	if err != nil {
		e.recordFailure(fmt.Errorf("failed to encode frame: %w", err), 0)
		return true, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	predictions, err := e.detector.Detect(callCtx, jpeg)
	latency := time.Since(start)
	if err != nil {
		e.recordFailure(err, latency)
		return true, err
	}

	e.mu.Lock()
	e.result = model.RemoteResult{
		Predictions:  predictions,
		SourceWidth:  width,
		SourceHeight: height,
		InputSize:    e.cfg.InputSize,
		UpdatedAt:    time.Now(),
	}
	e.failures = 0
	e.lastError = ""
	e.lastAttempt = start
	e.mu.Unlock()

	e.metrics.OracleCall(metrics.OutcomeSuccess, latency)
	return true, nil
}

func (e *Enricher) recordFailure(err error, latency time.Duration) {
	e.mu.Lock()
	e.failures++
	failures := e.failures
	e.lastError = err.Error()
	e.lastAttempt = time.Now()
	e.mu.Unlock()

	e.metrics.OracleCall(metrics.OutcomeFailure, latency)
	e.logger.Warning("Remote detector call failed (%d in a row), keeping previous result: %v", failures, err)
}

// nextDelay is the fixed interval, doubled per consecutive failure when
// backoff is enabled.
func (e *Enricher) nextDelay() time.Duration {
	e.mu.RLock()
	failures := e.failures
	e.mu.RUnlock()

	return backoff(e.cfg.Interval, e.cfg.BackoffMax, failures)
}

func backoff(interval, max time.Duration, failures int) time.Duration {
	if max <= interval || failures <= 1 {
		return interval
	}
	delay := interval
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

func (e *Enricher) drain() {
	if f, ok := e.mailbox.Close(); ok {
		f.Close()
	}
}
