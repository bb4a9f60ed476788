package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"proctorcam/internal/model"
)

// DetectorParams tunes one cascade's DetectMultiScale call.
type DetectorParams struct {
	ScaleFactor  float64
	MinNeighbors int
}

// Default cascade parameters.
var (
	DefaultFaceParams = DetectorParams{ScaleFactor: 1.1, MinNeighbors: 5}
	DefaultEyeParams  = DetectorParams{ScaleFactor: 1.1, MinNeighbors: 4}
)

// CascadeAnalyzer finds faces and, inside each face, eyes.
type CascadeAnalyzer struct {
	face       gocv.CascadeClassifier
	eye        gocv.CascadeClassifier
	faceParams DetectorParams
	eyeParams  DetectorParams
	mu         sync.Mutex
}

// NewCascadeAnalyzer loads both cascade files.
func NewCascadeAnalyzer(faceCascade, eyeCascade string, faceParams, eyeParams DetectorParams) (*CascadeAnalyzer, error) {
	face, err := loadCascade(faceCascade)
	if err != nil {
		return nil, err
	}
	eye, err := loadCascade(eyeCascade)
	if err != nil {
		face.Close()
		return nil, err
	}

	return &CascadeAnalyzer{
		face:       face,
		eye:        eye,
		faceParams: faceParams,
		eyeParams:  eyeParams,
	}, nil
}

func loadCascade(path string) (gocv.CascadeClassifier, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.CascadeClassifier{}, fmt.Errorf("cascade file not found: %s", path)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return gocv.CascadeClassifier{}, fmt.Errorf("failed to load cascade: %s", path)
	}
	return classifier, nil
}

// Analyze runs face detection on the grayscale frame, then eye detection
// inside every face box. Eye boxes are relative to their face.
func (a *CascadeAnalyzer) Analyze(frame *Frame) (model.Observation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(frame.mat, &gray, gocv.ColorBGRToGray); err != nil {
		return model.Observation{}, fmt.Errorf("failed to convert frame to grayscale: %v", err)
	}

	rects := detect(&a.face, gray, a.faceParams)
	obs := model.Observation{Faces: make([]model.Face, 0, len(rects))}
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())

	for _, r := range rects {
		face := model.Face{Box: model.BoxFromRect(r)}

		roiRect := r.Intersect(bounds)
		if !roiRect.Empty() {
			roi := gray.Region(roiRect)
			for _, e := range detect(&a.eye, roi, a.eyeParams) {
				face.Eyes = append(face.Eyes, model.BoxFromRect(e))
			}
			roi.Close()
		}
		obs.Faces = append(obs.Faces, face)
	}
	return obs, nil
}

func detect(c *gocv.CascadeClassifier, img gocv.Mat, p DetectorParams) []image.Rectangle {
	return c.DetectMultiScaleWithParams(img, p.ScaleFactor, p.MinNeighbors, 0, image.Point{}, image.Point{})
}

// Close releases both classifiers.
func (a *CascadeAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	errFace := a.face.Close()
	errEye := a.eye.Close()
	if errFace != nil {
		return errFace
	}
	return errEye
}
