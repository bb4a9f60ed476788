package enrichment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"proctorcam/internal/logger"
	"proctorcam/internal/metrics"
	"proctorcam/internal/model"
)

// ========================================
// Fakes
// ========================================

type fakeFrame struct {
	id     int
	closed atomic.Bool
	encErr error
}

func (f *fakeFrame) Encode(size int) ([]byte, error) {
	if f.encErr != nil {
		return nil, f.encErr
	}
	return []byte{byte(f.id)}, nil
}

func (f *fakeFrame) Size() (int, int) { return 1280, 720 }

func (f *fakeFrame) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeDetector struct {
	mu     sync.Mutex
	calls  [][]byte
	result []model.Prediction
	err    error
	block  chan struct{}
}

func (d *fakeDetector) Detect(ctx context.Context, jpeg []byte) ([]model.Prediction, error) {
	d.mu.Lock()
	d.calls = append(d.calls, jpeg)
	result, err, block := d.result, d.err, d.block
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return result, err
}

func (d *fakeDetector) set(result []model.Prediction, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result, d.err = result, err
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func testConfig() Config {
	return Config{InputSize: 640, Interval: 20 * time.Millisecond, Timeout: 10 * time.Millisecond}
}

func phone() model.Prediction {
	return model.Prediction{Class: "cell phone", Confidence: 0.9, Box: model.NewBox(10, 10, 100, 100)}
}

// ========================================
// Mailbox
// ========================================

func TestMailbox_LatestWins(t *testing.T) {
	var m Mailbox[int]

	if _, ok := m.Take(); ok {
		t.Fatal("Expected empty mailbox")
	}

	if _, dropped, _ := m.Put(1); dropped {
		t.Error("Expected first put not to drop")
	}
	old, dropped, err := m.Put(2)
	if err != nil {
		t.Fatalf("Expected put to succeed, got %v", err)
	}
	if !dropped || old != 1 {
		t.Errorf("Expected 1 to be dropped, got %d (dropped=%v)", old, dropped)
	}

	v, ok := m.Take()
	if !ok || v != 2 {
		t.Errorf("Expected 2, got %d (ok=%v)", v, ok)
	}
	if _, ok := m.Take(); ok {
		t.Error("Expected mailbox to be empty after take")
	}
	if m.Drops() != 1 {
		t.Errorf("Expected 1 drop, got %d", m.Drops())
	}
}

func TestMailbox_CloseRejectsPut(t *testing.T) {
	var m Mailbox[int]
	m.Put(7)

	v, ok := m.Close()
	if !ok || v != 7 {
		t.Errorf("Expected close to return leftover 7, got %d (ok=%v)", v, ok)
	}
	if _, ok := m.Close(); ok {
		t.Error("Expected second close to find an empty slot")
	}

	_, dropped, err := m.Put(8)
	if !errors.Is(err, ErrMailboxClosed) {
		t.Errorf("Expected ErrMailboxClosed, got %v", err)
	}
	if dropped {
		t.Error("Expected rejected put not to count as a drop")
	}
	if _, ok := m.Take(); ok {
		t.Error("Expected rejected value not to be stored")
	}
	if m.Drops() != 0 {
		t.Errorf("Expected 0 drops, got %d", m.Drops())
	}
}

// ========================================
// Cycle
// ========================================

func TestCycle_IdleWithoutFrame(t *testing.T) {
	det := &fakeDetector{}
	e := New(testConfig(), det, logger.Discard(), nil)

	attempted, err := e.Cycle(context.Background())
	if attempted || err != nil {
		t.Errorf("Expected idle cycle, got attempted=%v err=%v", attempted, err)
	}
	if det.callCount() != 0 {
		t.Errorf("Expected no detector calls, got %d", det.callCount())
	}
}

func TestCycle_StoresResult(t *testing.T) {
	det := &fakeDetector{result: []model.Prediction{phone()}}
	e := New(testConfig(), det, logger.Discard(), metrics.New())

	frame := &fakeFrame{id: 1}
	e.Submit(frame)

	if _, err := e.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	result := e.Result()
	if result.Empty() {
		t.Fatal("Expected a result")
	}
	if len(result.Predictions) != 1 || result.Predictions[0].Class != "cell phone" {
		t.Errorf("Unexpected predictions: %+v", result.Predictions)
	}
	if result.SourceWidth != 1280 || result.SourceHeight != 720 || result.InputSize != 640 {
		t.Errorf("Unexpected geometry: %+v", result)
	}
	if !frame.closed.Load() {
		t.Error("Expected frame to be closed after the call")
	}
}

func TestCycle_FailureKeepsPreviousResult(t *testing.T) {
	det := &fakeDetector{result: []model.Prediction{phone()}}
	e := New(testConfig(), det, logger.Discard(), nil)

	e.Submit(&fakeFrame{id: 1})
	e.Cycle(context.Background())
	before := e.Result()

	det.set(nil, errors.New("connection refused"))
	e.Submit(&fakeFrame{id: 2})
	if _, err := e.Cycle(context.Background()); err == nil {
		t.Fatal("Expected cycle error")
	}

	after := e.Result()
	if !after.UpdatedAt.Equal(before.UpdatedAt) || len(after.Predictions) != 1 {
		t.Errorf("Expected previous result to be retained, got %+v", after)
	}
	if s := e.Stats(); s.ConsecutiveFailures != 1 || s.LastError == "" {
		t.Errorf("Expected failure to be recorded, got %+v", s)
	}
}

func TestCycle_EncodeFailureKeepsPreviousResult(t *testing.T) {
	det := &fakeDetector{}
	e := New(testConfig(), det, logger.Discard(), nil)

	frame := &fakeFrame{id: 1, encErr: errors.New("bad mat")}
	e.Submit(frame)
	if _, err := e.Cycle(context.Background()); err == nil {
		t.Fatal("Expected encode error")
	}
	if det.callCount() != 0 {
		t.Errorf("Expected detector not to be called, got %d", det.callCount())
	}
	if !e.Result().Empty() {
		t.Error("Expected result to stay empty")
	}
	if !frame.closed.Load() {
		t.Error("Expected frame to be closed")
	}
}

func TestCycle_TimeoutIsFailure(t *testing.T) {
	det := &fakeDetector{block: make(chan struct{})}
	defer close(det.block)
	e := New(testConfig(), det, logger.Discard(), nil)

	e.Submit(&fakeFrame{id: 1})
	_, err := e.Cycle(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSubmit_DropsStaleFrame(t *testing.T) {
	det := &fakeDetector{}
	e := New(testConfig(), det, logger.Discard(), nil)

	first := &fakeFrame{id: 1}
	second := &fakeFrame{id: 2}
	e.Submit(first)
	e.Submit(second)

	if !first.closed.Load() {
		t.Error("Expected overwritten frame to be closed")
	}
	if second.closed.Load() {
		t.Error("Expected latest frame to stay open")
	}

	e.Cycle(context.Background())
	if det.callCount() != 1 || det.calls[0][0] != 2 {
		t.Errorf("Expected one call with the latest frame, got %v", det.calls)
	}
	if e.Stats().HandoffDrops != 1 {
		t.Errorf("Expected 1 hand-off drop, got %d", e.Stats().HandoffDrops)
	}
}

// ========================================
// Run loop
// ========================================

func TestRun_StopsAndReleasesFrame(t *testing.T) {
	det := &fakeDetector{}
	cfg := testConfig()
	cfg.Interval = time.Hour
	e := New(cfg, det, logger.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	// The first cycle runs immediately with nothing to send.
	time.Sleep(20 * time.Millisecond)
	pending := &fakeFrame{id: 1}
	e.Submit(pending)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	if !pending.closed.Load() {
		t.Error("Expected pending frame to be released on stop")
	}

	late := &fakeFrame{id: 2}
	e.Submit(late)
	if !late.closed.Load() {
		t.Error("Expected frames submitted after stop to be closed")
	}
}

func TestSubmit_RacingStopReleasesEveryFrame(t *testing.T) {
	det := &fakeDetector{}
	cfg := testConfig()
	cfg.Interval = time.Millisecond
	e := New(cfg, det, logger.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	const submitters, perSubmitter = 4, 200
	frames := make([][]*fakeFrame, submitters)
	var wg sync.WaitGroup
	for i := range frames {
		frames[i] = make([]*fakeFrame, perSubmitter)
		wg.Add(1)
		go func(batch []*fakeFrame) {
			defer wg.Done()
			for j := range batch {
				batch[j] = &fakeFrame{id: j}
				e.Submit(batch[j])
			}
		}(frames[i])
	}

	time.Sleep(5 * time.Millisecond)
	cancel()
	wg.Wait()
	<-done

	for i, batch := range frames {
		for j, f := range batch {
			if !f.closed.Load() {
				t.Fatalf("Expected frame %d/%d to be released, it was leaked", i, j)
			}
		}
	}
}

func TestRun_PollsPeriodically(t *testing.T) {
	det := &fakeDetector{result: []model.Prediction{phone()}}
	e := New(testConfig(), det, logger.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for det.callCount() < 2 && time.Now().Before(deadline) {
		e.Submit(&fakeFrame{id: 1})
		time.Sleep(5 * time.Millisecond)
	}
	if det.callCount() < 2 {
		t.Errorf("Expected repeated calls, got %d", det.callCount())
	}
}

// ========================================
// Backoff
// ========================================

func TestBackoff(t *testing.T) {
	interval := 4 * time.Second
	tests := []struct {
		name     string
		max      time.Duration
		failures int
		want     time.Duration
	}{
		{"no failures", 30 * time.Second, 0, 4 * time.Second},
		{"first failure", 30 * time.Second, 1, 4 * time.Second},
		{"second failure", 30 * time.Second, 2, 8 * time.Second},
		{"third failure", 30 * time.Second, 3, 16 * time.Second},
		{"capped", 30 * time.Second, 4, 30 * time.Second},
		{"far past cap", 30 * time.Second, 80, 30 * time.Second},
		{"disabled", 0, 5, 4 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backoff(interval, tt.max, tt.failures); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
