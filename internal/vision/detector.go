// Package vision runs face detection and mask classification over OpenCV frames.
package vision

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// DefaultCascadePath is where the frontal face Haar cascade is expected.
const DefaultCascadePath = "data/haarcascade_frontalface_default.xml"

// DetectParams mirrors the arguments of OpenCV's detectMultiScale.
type DetectParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int // Minimum face width and height in pixels
}

// DefaultDetectParams returns the parameters tuned for a webcam at arm's length.
func DefaultDetectParams() DetectParams {
	return DetectParams{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      50,
	}
}

// FaceDetector finds face rectangles in a BGR frame.
type FaceDetector interface {
	Detect(frame gocv.Mat) []image.Rectangle
	Close() error
}

// CascadeDetector wraps a Haar cascade. It is not safe for concurrent use;
// give each goroutine its own.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	params     DetectParams
	gray       gocv.Mat
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string, params DetectParams) (*CascadeDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cascade file not found: %s: %w", path, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("error reading cascade file: %s", path)
	}

	return &CascadeDetector{
		classifier: classifier,
		params:     params,
		gray:       gocv.NewMat(),
	}, nil
}

// Detect converts the frame to grayscale and runs the cascade.
func (d *CascadeDetector) Detect(frame gocv.Mat) []image.Rectangle {
	if frame.Empty() {
		return nil
	}
	gocv.CvtColor(frame, &d.gray, gocv.ColorBGRToGray)

	minSize := image.Pt(d.params.MinSize, d.params.MinSize)
	return d.classifier.DetectMultiScaleWithParams(d.gray, d.params.ScaleFactor, d.params.MinNeighbors, 0, minSize, image.Pt(0, 0))
}

// Close releases the cascade and scratch buffers.
func (d *CascadeDetector) Close() error {
	d.gray.Close()
	return d.classifier.Close()
}
