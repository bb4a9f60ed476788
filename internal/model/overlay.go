package model

import "time"

// Overlay is everything the renderer draws on top of a frame.
type Overlay struct {
	Faces     []Face
	Object    *Prediction // already mapped to frame coordinates
	Message   string
	Alerting  bool
	Timestamp time.Time
}

// FaceCount returns the number of faces drawn on the overlay.
func (o Overlay) FaceCount() int {
	return len(o.Faces)
}
