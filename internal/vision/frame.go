package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"proctorcam/internal/service/enrichment"
)

// Frame is one captured image. The capture loop owns it for one iteration;
// Clone makes the independent copy handed to remote enrichment.
type Frame struct {
	mat gocv.Mat
}

// LoadFrame reads an image file from disk.
func LoadFrame(path string) (*Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	return &Frame{mat: mat}, nil
}

// Size returns the frame width and height in pixels.
func (f *Frame) Size() (int, int) {
	return f.mat.Cols(), f.mat.Rows()
}

// Clone deep-copies the pixel data.
func (f *Frame) Clone() enrichment.Frame {
	return &Frame{mat: f.mat.Clone()}
}

// Encode resizes to size x size and encodes as JPEG.
func (f *Frame) Encode(size int) ([]byte, error) {
	if size <= 0 {
		return encodeJPEG(f.mat, 0)
	}

	resized := gocv.NewMat()
	defer resized.Close()

	if err := gocv.Resize(f.mat, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, fmt.Errorf("failed to resize frame: %v", err)
	}
	return encodeJPEG(resized, 0)
}

// Close releases the underlying Mat.
func (f *Frame) Close() error {
	return f.mat.Close()
}

// encodeJPEG returns a Go-owned copy of the encoded bytes. quality <= 0 uses
// the OpenCV default.
func encodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if quality > 0 {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	} else {
		buf, err = gocv.IMEncode(gocv.JPEGFileExt, mat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
