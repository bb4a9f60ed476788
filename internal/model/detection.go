package model

import (
	"image"
	"time"
)

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewBox builds a Box, clamping negative sizes to zero.
func NewBox(x, y, width, height int) Box {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Box{X: x, Y: y, Width: width, Height: height}
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	r = r.Canon()
	return NewBox(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area returns width*height.
func (b Box) Area() int {
	return b.Width * b.Height
}

// Scale multiplies every coordinate by the given factors.
func (b Box) Scale(sx, sy float64) Box {
	return NewBox(
		int(float64(b.X)*sx),
		int(float64(b.Y)*sy),
		int(float64(b.Width)*sx),
		int(float64(b.Height)*sy),
	)
}

// Prediction is one object reported by the remote detector, in the
// detector's input pixel space.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box
	// ExactArea is width*height as reported, before rounding to pixels.
	// Zero means unknown and Area falls back to the integer box.
	ExactArea float64 `json:"area,omitempty"`
}

// Area returns the reported area, or the box area when none was recorded.
func (p Prediction) Area() float64 {
	if p.ExactArea > 0 {
		return p.ExactArea
	}
	return float64(p.Box.Area())
}

// Face is a detected face together with the eyes found inside it.
// Eye boxes are relative to the face box.
type Face struct {
	Box  Box   `json:"box"`
	Eyes []Box `json:"eyes,omitempty"`
}

// EyeCount returns the number of eyes detected inside the face.
func (f Face) EyeCount() int {
	return len(f.Eyes)
}

// Observation is the local analysis result for a single frame.
type Observation struct {
	Faces []Face `json:"faces"`
}

// FaceCount returns the number of faces in the frame.
func (o Observation) FaceCount() int {
	return len(o.Faces)
}

// RemoteResult is the latest successful response from the remote detector.
// The zero value means no call has succeeded yet.
type RemoteResult struct {
	Predictions  []Prediction `json:"predictions"`
	SourceWidth  int          `json:"source_width"`
	SourceHeight int          `json:"source_height"`
	InputSize    int          `json:"input_size"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Empty reports whether no successful call has been recorded.
func (r RemoteResult) Empty() bool {
	return r.UpdatedAt.IsZero()
}

// Clone returns a deep copy so readers never share the prediction slice.
func (r RemoteResult) Clone() RemoteResult {
	out := r
	if r.Predictions != nil {
		out.Predictions = make([]Prediction, len(r.Predictions))
		copy(out.Predictions, r.Predictions)
	}
	return out
}

// ToFrame maps a box from detector input space back to the source frame.
func (r RemoteResult) ToFrame(b Box) Box {
	if r.InputSize <= 0 || r.SourceWidth <= 0 || r.SourceHeight <= 0 {
		return b
	}
	return b.Scale(
		float64(r.SourceWidth)/float64(r.InputSize),
		float64(r.SourceHeight)/float64(r.InputSize),
	)
}
