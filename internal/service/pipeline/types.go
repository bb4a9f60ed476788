// Package pipeline runs the per-frame detection loop and owns the session
// state shared with the HTTP layer.
package pipeline

import (
	"errors"
	"time"

	"proctorcam/internal/alert"
	"proctorcam/internal/model"
	"proctorcam/internal/service/enrichment"
)

// ErrStreamEnded is returned by Run when the frame source fails. The source
// error stays in the chain.
var ErrStreamEnded = errors.New("capture stream ended")

// Frame is a captured image owned by the loop for one iteration.
type Frame interface {
	Clone() enrichment.Frame
	Close() error
}

// Source delivers frames until it fails.
type Source[F Frame] interface {
	Read() (F, error)
	Close() error
}

// Analyzer finds faces and eyes.
type Analyzer[F Frame] interface {
	Analyze(frame F) (model.Observation, error)
}

// Renderer draws the overlay and encodes the frame for viewers.
type Renderer[F Frame] interface {
	Render(frame F, overlay model.Overlay) ([]byte, error)
}

// Enrichment is the remote detection side channel.
type Enrichment interface {
	Submit(frame enrichment.Frame)
	Result() model.RemoteResult
}

// EventSink receives JSON encoded events.
type EventSink interface {
	Broadcast(message []byte)
}

// Event types.
const (
	EventStatus       = "status" // greeting with the current status
	EventAlert        = "alert"
	EventSessionReset = "session_reset"
	EventSessionEnded = "session_ended"
)

// Status is the announced alert as shown to clients.
type Status struct {
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func statusOf(kind alert.Kind, at time.Time) Status {
	return Status{Message: kind.Message(), Status: kind.String(), Timestamp: at}
}

// Event is pushed to viewers on every announced change and session change.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Previous  string `json:"previous,omitempty"`
	Status
}

// RemoteInfo summarizes the latest remote detector result.
type RemoteInfo struct {
	Enabled     bool       `json:"enabled"`
	Predictions int        `json:"predictions"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	AgeSeconds  float64    `json:"age_seconds,omitempty"`
}

// Session is a snapshot of the monitoring session.
type Session struct {
	ID        string      `json:"id"`
	StartedAt time.Time   `json:"started_at"`
	Frames    uint64      `json:"frames"`
	FaceCount int         `json:"face_count"`
	Timers    alert.State `json:"timers"`
	Status    Status      `json:"status"`
	Remote    RemoteInfo  `json:"remote"`
	Running   bool        `json:"running"`
	Error     string      `json:"error,omitempty"`
}
