// Package vision wraps gocv: frame capture, Haar cascade analysis and
// overlay rendering.
package vision

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrCameraUnavailable is returned when the capture device cannot be opened.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrStreamEnded is returned when the device stops delivering frames.
	ErrStreamEnded = errors.New("camera stream ended")
)

// Camera holds a capture device exclusively until Close.
type Camera struct {
	capture *gocv.VideoCapture
	index   int
	mu      sync.Mutex
}

// OpenCamera opens the device at index and requests the given resolution.
func OpenCamera(index, width, height int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrCameraUnavailable, index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: device %d is not opened", ErrCameraUnavailable, index)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(height))

	return &Camera{capture: capture, index: index}, nil
}

// Read grabs the next frame. A failed or empty read ends the stream.
func (c *Camera) Read() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, fmt.Errorf("%w: device %d is closed", ErrStreamEnded, c.index)
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: device %d returned no frame", ErrStreamEnded, c.index)
	}
	return &Frame{mat: mat}, nil
}

// Close releases the device. Safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}
