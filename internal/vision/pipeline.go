package vision

import (
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/maskguard/internal/mask"
	"github.com/andresmejia3/maskguard/internal/types"
	"gocv.io/x/gocv"
)

var (
	colorMasked   = color.RGBA{G: 255, A: 255}
	colorUnmasked = color.RGBA{R: 255, A: 255}
	colorText     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ControlsHint is drawn along the bottom edge of live frames.
const ControlsHint = "Press 'q' to quit, 's' for screenshot"

// FrameStats aggregates the verdicts for one frame.
type FrameStats struct {
	Faces    int
	Masked   int
	Verdicts []types.FaceVerdict
}

// Unmasked is the number of faces without a mask.
func (s FrameStats) Unmasked() int {
	return s.Faces - s.Masked
}

// ClassifyRegion converts a BGR region to HSV and scores it.
func ClassifyRegion(c *mask.Classifier, region gocv.Mat) mask.Result {
	if region.Empty() || region.Rows() == 0 || region.Cols() == 0 {
		return mask.Result{}
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV)

	return c.Classify(PixelsFromMat(hsv))
}

// PixelsFromMat unpacks a continuous 3-channel 8-bit Mat into HSV triples.
func PixelsFromMat(hsv gocv.Mat) []mask.HSV {
	data := hsv.ToBytes()
	pixels := make([]mask.HSV, len(data)/3)
	for i := range pixels {
		pixels[i] = mask.HSV{H: data[3*i], S: data[3*i+1], V: data[3*i+2]}
	}
	return pixels
}

// Pipeline detects faces, classifies each one, and draws the results.
type Pipeline struct {
	Detector   FaceDetector
	Classifier *mask.Classifier
	// ShowHint draws the keyboard controls line on annotated frames.
	ShowHint bool
}

// Analyze runs detection and classification without touching the frame.
func (p *Pipeline) Analyze(frame gocv.Mat) FrameStats {
	rects := p.Detector.Detect(frame)
	stats := FrameStats{Faces: len(rects), Verdicts: make([]types.FaceVerdict, 0, len(rects))}

	for _, r := range rects {
		region := frame.Region(r)
		res := ClassifyRegion(p.Classifier, region)
		region.Close()

		if res.Masked {
			stats.Masked++
		}
		stats.Verdicts = append(stats.Verdicts, types.FaceVerdict{
			Box:    types.BoxFromRect(r),
			Result: res,
			Label:  mask.Label(res),
		})
	}
	return stats
}

// Annotate draws face boxes, labels and the counter overlay onto frame.
func (p *Pipeline) Annotate(frame *gocv.Mat, stats FrameStats) {
	for _, v := range stats.Verdicts {
		c := colorUnmasked
		if v.Result.Masked {
			c = colorMasked
		}
		r := v.Box.Rect()
		gocv.Rectangle(frame, r, c, 3)
		gocv.PutText(frame, v.Label, image.Pt(r.Min.X, r.Min.Y-10), gocv.FontHersheySimplex, 0.7, c, 2)
	}

	gocv.PutText(frame, fmt.Sprintf("Faces: %d", stats.Faces), image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, colorText, 2)
	gocv.PutText(frame, fmt.Sprintf("With Mask: %d", stats.Masked), image.Pt(10, 60), gocv.FontHersheySimplex, 0.8, colorMasked, 2)
	gocv.PutText(frame, fmt.Sprintf("Without Mask: %d", stats.Unmasked()), image.Pt(10, 90), gocv.FontHersheySimplex, 0.8, colorUnmasked, 2)
	if p.ShowHint {
		gocv.PutText(frame, ControlsHint, image.Pt(10, frame.Rows()-20), gocv.FontHersheySimplex, 0.6, colorText, 1)
	}
}

// Process analyzes the frame and annotates it in place.
func (p *Pipeline) Process(frame *gocv.Mat) FrameStats {
	stats := p.Analyze(*frame)
	p.Annotate(frame, stats)
	return stats
}
