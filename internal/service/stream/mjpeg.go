package stream

import (
	"context"
	"fmt"
	"io"
)

// Boundary separates MJPEG parts.
const Boundary = "frame"

// ContentType is the response content type of an MJPEG stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

var partHeader = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")

// WriteFrame writes one multipart part holding a JPEG.
func WriteFrame(w io.Writer, jpeg []byte) error {
	if _, err := w.Write(partHeader); err != nil {
		return fmt.Errorf("failed to write part header: %w", err)
	}
	if _, err := w.Write(jpeg); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return fmt.Errorf("failed to write delimiter: %w", err)
	}
	return nil
}

// Serve copies frames to w until the channel closes, ctx is done or a write
// fails. flush is called after every part and may be nil.
func Serve(ctx context.Context, w io.Writer, flush func(), frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := WriteFrame(w, frame); err != nil {
				return err
			}
			if flush != nil {
				flush()
			}
		}
	}
}
