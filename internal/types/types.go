package types

import (
	"image"

	"github.com/andresmejia3/maskguard/internal/mask"
)

// FrameTask represents a single frame sent to an engine for processing
type FrameTask struct {
	Index int
	Data  []byte
}

// Box is a face rectangle in frame pixels.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// BoxFromRect converts a detector rectangle.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Rect converts back to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// FaceVerdict is one detected face and its mask classification.
type FaceVerdict struct {
	Box    Box         `json:"box"`
	Result mask.Result `json:"result"`
	Label  string      `json:"label"`
}

// FrameResult is what an engine returns for one frame.
type FrameResult struct {
	Index    int           `json:"index"`
	Faces    int           `json:"faces"`
	Masked   int           `json:"masked"`
	Verdicts []FaceVerdict `json:"verdicts"`
}
