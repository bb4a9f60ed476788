// Package alert turns per-frame face and object signals into a single,
// debounced alert.
//
// All thresholds count processed frames, not seconds. At 30 fps the default
// absence threshold of 10 frames is a third of a second; at 5 fps it is two
// seconds. Tune them against the frame rate the capture loop actually achieves.
package alert

import (
	"fmt"

	"proctorcam/internal/model"
)

// AttentionPolicy selects how multi-face frames update the attention timer.
type AttentionPolicy string

const (
	// AttentionAnyFace resets the timer once per frame if any face shows
	// enough eyes, and increments it once otherwise.
	AttentionAnyFace AttentionPolicy = "any"
	// AttentionPerFace updates the timer once per face in detection order,
	// so the last faces of the frame decide the outcome.
	AttentionPerFace AttentionPolicy = "per_face"
)

const (
	DefaultAbsenceThreshold    = 10
	DefaultIntruderThreshold   = 10
	DefaultAttentionThreshold  = 15
	DefaultObjectMinConfidence = 0.85
	DefaultObjectMinArea       = 5000
	DefaultMinEyes             = 2
)

// Config holds the decision tunables.
type Config struct {
	AbsenceThreshold    int // consecutive frames without a face
	IntruderThreshold   int // accumulated frames with more than one face
	AttentionThreshold  int // consecutive faced frames without enough eyes
	ObjectMinConfidence float64
	ObjectMinArea       int // width*height in detector pixels
	MinEyes             int
	Attention           AttentionPolicy
}

// DefaultConfig returns the thresholds the detector was tuned with.
func DefaultConfig() Config {
	return Config{
		AbsenceThreshold:    DefaultAbsenceThreshold,
		IntruderThreshold:   DefaultIntruderThreshold,
		AttentionThreshold:  DefaultAttentionThreshold,
		ObjectMinConfidence: DefaultObjectMinConfidence,
		ObjectMinArea:       DefaultObjectMinArea,
		MinEyes:             DefaultMinEyes,
		Attention:           AttentionAnyFace,
	}
}

// Validate checks that every threshold is usable.
func (c Config) Validate() error {
	if c.AbsenceThreshold <= 0 || c.IntruderThreshold <= 0 || c.AttentionThreshold <= 0 {
		return fmt.Errorf("alert thresholds must be positive")
	}
	if c.ObjectMinConfidence < 0 || c.ObjectMinConfidence > 1 {
		return fmt.Errorf("object confidence floor %.2f outside [0,1]", c.ObjectMinConfidence)
	}
	if c.ObjectMinArea < 0 {
		return fmt.Errorf("object area floor must not be negative")
	}
	if c.MinEyes <= 0 {
		return fmt.Errorf("minimum eye count must be positive")
	}
	switch c.Attention {
	case AttentionAnyFace, AttentionPerFace:
	default:
		return fmt.Errorf("unknown attention policy %q", c.Attention)
	}
	return nil
}

// State is the per-session signal memory.
type State struct {
	Absence       int  `json:"absence"`
	Intruder      int  `json:"intruder"`
	Attention     int  `json:"attention"`
	LastAnnounced Kind `json:"last_announced"`
}

// Decision is the outcome of one Update call.
type Decision struct {
	Candidate Kind
	Announced Kind
	Previous  Kind
	Changed   bool
	Object    *model.Prediction // first qualifying object, detector space
	State     State
}

// Engine merges local and remote signals. It is not safe for concurrent use.
type Engine struct {
	cfg   Config
	state State
}

// NewEngine creates an engine with zeroed state.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// State returns a copy of the current counters.
func (e *Engine) State() State {
	return e.state
}

// Reset starts a new session.
func (e *Engine) Reset() {
	e.state = State{}
}

// Update advances the counters by one frame and returns the decision.
func (e *Engine) Update(obs model.Observation, remote model.RemoteResult) Decision {
	e.updateAttention(obs)

	faces := obs.FaceCount()
	if faces == 0 {
		e.state.Absence++
	} else {
		e.state.Absence = 0
	}

	if faces > 1 {
		e.state.Intruder++
	} else if e.state.Intruder > 0 {
		e.state.Intruder--
	}

	var object *model.Prediction
	if p, ok := FindSuspicious(remote.Predictions, e.cfg.ObjectMinConfidence, e.cfg.ObjectMinArea); ok {
		object = &p
	}

	candidate := Decide(e.state, object != nil, e.cfg)
	previous := e.state.LastAnnounced
	changed := candidate != previous
	if changed {
		e.state.LastAnnounced = candidate
	}

	return Decision{
		Candidate: candidate,
		Announced: e.state.LastAnnounced,
		Previous:  previous,
		Changed:   changed,
		Object:    object,
		State:     e.state,
	}
}

func (e *Engine) updateAttention(obs model.Observation) {
	if obs.FaceCount() == 0 {
		return
	}

	if e.cfg.Attention == AttentionPerFace {
		for _, face := range obs.Faces {
			if face.EyeCount() >= e.cfg.MinEyes {
				e.state.Attention = 0
			} else {
				e.state.Attention++
			}
		}
		return
	}

	for _, face := range obs.Faces {
		if face.EyeCount() >= e.cfg.MinEyes {
			e.state.Attention = 0
			return
		}
	}
	e.state.Attention++
}

// FindSuspicious returns the first prediction meeting both floors.
func FindSuspicious(predictions []model.Prediction, minConfidence float64, minArea int) (model.Prediction, bool) {
	for _, p := range predictions {
		if p.Confidence >= minConfidence && p.Area() >= float64(minArea) {
			return p, true
		}
	}
	return model.Prediction{}, false
}

// Decide picks the highest-priority condition that currently holds.
func Decide(s State, suspicious bool, cfg Config) Kind {
	switch {
	case s.Intruder >= cfg.IntruderThreshold:
		return Intruder
	case s.Absence >= cfg.AbsenceThreshold:
		return Absence
	case suspicious:
		return SuspiciousObject
	case s.Attention >= cfg.AttentionThreshold:
		return AttentionLost
	default:
		return None
	}
}
