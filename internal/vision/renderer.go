package vision

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"proctorcam/internal/model"
)

const statusBarHeight = 28

var (
	green = color.RGBA{G: 255, A: 0}
	cyan  = color.RGBA{G: 255, B: 255, A: 0}
	red   = color.RGBA{R: 255, A: 0}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	black = color.RGBA{A: 0}
)

// Renderer draws the overlay onto a frame and encodes it for the stream.
type Renderer struct {
	quality int
}

// NewRenderer creates a renderer encoding with the given JPEG quality
// (1-100, 0 for the OpenCV default).
func NewRenderer(quality int) *Renderer {
	return &Renderer{quality: quality}
}

// Render draws face and eye boxes, the suspicious object and a status bar,
// then returns the JPEG. The frame is modified in place.
func (r *Renderer) Render(frame *Frame, overlay model.Overlay) ([]byte, error) {
	mat := &frame.mat

	for _, face := range overlay.Faces {
		if err := gocv.Rectangle(mat, face.Box.Rect(), green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw face: %v", err)
		}
		for _, eye := range face.Eyes {
			abs := eye.Rect().Add(image.Pt(face.Box.X, face.Box.Y))
			if err := gocv.Rectangle(mat, abs, cyan, 1); err != nil {
				return nil, fmt.Errorf("failed to draw eye: %v", err)
			}
		}
	}

	if obj := overlay.Object; obj != nil {
		if err := gocv.Rectangle(mat, obj.Rect(), red, 2); err != nil {
			return nil, fmt.Errorf("failed to draw object: %v", err)
		}
		pt := image.Pt(obj.X, obj.Y-10)
		if err := gocv.PutText(mat, ObjectLabel(*obj), pt, gocv.FontHersheySimplex, 0.6, red, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	if err := r.drawStatusBar(mat, overlay); err != nil {
		return nil, err
	}

	return encodeJPEG(*mat, r.quality)
}

func (r *Renderer) drawStatusBar(mat *gocv.Mat, overlay model.Overlay) error {
	bar := image.Rect(0, mat.Rows()-statusBarHeight, mat.Cols(), mat.Rows())
	if err := gocv.Rectangle(mat, bar, black, -1); err != nil {
		return fmt.Errorf("failed to draw status bar: %v", err)
	}

	textColor := white
	if overlay.Alerting {
		textColor = red
	}
	pt := image.Pt(8, mat.Rows()-9)
	if err := gocv.PutText(mat, StatusLine(overlay), pt, gocv.FontHersheySimplex, 0.5, textColor, 1); err != nil {
		return fmt.Errorf("failed to draw status text: %v", err)
	}
	return nil
}

// ObjectLabel formats a prediction as "class (NN%)".
func ObjectLabel(p model.Prediction) string {
	return fmt.Sprintf("%s (%d%%)", p.Class, int(p.Confidence*100))
}

// StatusLine is the text of the bottom bar. Hershey fonts only cover ASCII,
// so other runes are dropped from the message.
func StatusLine(overlay model.Overlay) string {
	line := fmt.Sprintf("%s | Faces: %d", overlay.Timestamp.Format("2006-01-02 15:04:05"), overlay.FaceCount())
	if msg := asciiOnly(overlay.Message); msg != "" {
		line += " | " + msg
	}
	return line
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
