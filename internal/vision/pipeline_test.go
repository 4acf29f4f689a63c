package vision

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/maskguard/internal/mask"
	"gocv.io/x/gocv"
)

// fakeDetector returns a fixed set of rectangles.
type fakeDetector struct {
	rects  []image.Rectangle
	closed bool
}

func (f *fakeDetector) Detect(gocv.Mat) []image.Rectangle { return f.rects }
func (f *fakeDetector) Close() error                      { f.closed = true; return nil }

// bgrMat builds a rows x cols frame where pixel (x, y) gets paint(x, y) as BGR.
func bgrMat(t *testing.T, rows, cols int, paint func(x, y int) [3]byte) gocv.Mat {
	t.Helper()
	data := make([]byte, rows*cols*3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px := paint(x, y)
			i := (y*cols + x) * 3
			data[i], data[i+1], data[i+2] = px[0], px[1], px[2]
		}
	}
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("NewMatFromBytes failed: %v", err)
	}
	return m
}

func fill(bgr [3]byte) func(int, int) [3]byte {
	return func(int, int) [3]byte { return bgr }
}

var (
	bgrBlue  = [3]byte{255, 0, 0}
	bgrRed   = [3]byte{0, 0, 255}
	bgrWhite = [3]byte{255, 255, 255}
	bgrBlack = [3]byte{0, 0, 0}
)

func defaultClassifier(t *testing.T) *mask.Classifier {
	t.Helper()
	c, err := mask.New(mask.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClassifyRegionSolidColors(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		name       string
		bgr        [3]byte
		wantMasked bool
		wantConf   float64
	}{
		{"blue", bgrBlue, true, 100},
		{"white", bgrWhite, true, 100},
		{"black", bgrBlack, true, 100},
		{"red", bgrRed, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := bgrMat(t, 20, 20, fill(tt.bgr))
			defer m.Close()

			got := ClassifyRegion(c, m)
			if got.Masked != tt.wantMasked || got.Confidence != tt.wantConf {
				t.Errorf("ClassifyRegion() = %+v, want masked=%v confidence=%v", got, tt.wantMasked, tt.wantConf)
			}
		})
	}
}

func TestClassifyRegionEmpty(t *testing.T) {
	c := defaultClassifier(t)
	m := gocv.NewMat()
	defer m.Close()

	if got := ClassifyRegion(c, m); got != (mask.Result{}) {
		t.Errorf("ClassifyRegion(empty) = %+v, want zero result", got)
	}
}

// The threshold scenario runs through OpenCV's own BGR->HSV conversion.
func TestClassifyRegionThresholdBoundary(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		name       string
		white      int
		wantMasked bool
		wantConf   float64
	}{
		{"1600 white of 10000", 1600, true, 16.0},
		{"1500 white is exactly the threshold", 1500, false, 15.0},
		{"1400 white of 10000", 1400, false, 14.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := bgrMat(t, 100, 100, func(x, y int) [3]byte {
				if y*100+x < tt.white {
					return bgrWhite
				}
				return bgrRed
			})
			defer m.Close()

			got := ClassifyRegion(c, m)
			if got.Confidence != tt.wantConf || got.Masked != tt.wantMasked {
				t.Errorf("ClassifyRegion() = %+v, want masked=%v confidence=%v", got, tt.wantMasked, tt.wantConf)
			}
		})
	}
}

func TestPipelineAnalyze(t *testing.T) {
	// Left half blue, right half red.
	frame := bgrMat(t, 100, 200, func(x, y int) [3]byte {
		if x < 100 {
			return bgrBlue
		}
		return bgrRed
	})
	defer frame.Close()

	det := &fakeDetector{rects: []image.Rectangle{
		image.Rect(10, 10, 90, 90),
		image.Rect(110, 10, 190, 90),
	}}
	p := &Pipeline{Detector: det, Classifier: defaultClassifier(t)}

	stats := p.Analyze(frame)
	if stats.Faces != 2 || stats.Masked != 1 || stats.Unmasked() != 1 {
		t.Fatalf("unexpected stats: faces=%d masked=%d", stats.Faces, stats.Masked)
	}
	if v := stats.Verdicts[0]; !v.Result.Masked || v.Label != "MASK (100.0%)" {
		t.Errorf("left face verdict = %+v", v)
	}
	if v := stats.Verdicts[1]; v.Result.Masked || v.Label != "NO MASK (100.0%)" {
		t.Errorf("right face verdict = %+v", v)
	}
	if stats.Verdicts[1].Box.X != 110 || stats.Verdicts[1].Box.W != 80 {
		t.Errorf("box not carried through: %+v", stats.Verdicts[1].Box)
	}
}

func TestPipelineNoFaces(t *testing.T) {
	frame := bgrMat(t, 50, 50, fill(bgrRed))
	defer frame.Close()

	p := &Pipeline{Detector: &fakeDetector{}, Classifier: defaultClassifier(t)}
	stats := p.Process(&frame)
	if stats.Faces != 0 || stats.Masked != 0 || len(stats.Verdicts) != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestPipelineProcessDrawsBoxes(t *testing.T) {
	frame := bgrMat(t, 200, 200, fill(bgrBlack))
	defer frame.Close()

	det := &fakeDetector{rects: []image.Rectangle{image.Rect(120, 120, 190, 190)}}
	p := &Pipeline{Detector: det, Classifier: defaultClassifier(t), ShowHint: true}
	stats := p.Process(&frame)

	if stats.Masked != 1 {
		t.Fatalf("black face should read as masked, got %+v", stats)
	}
	// The masked box outline is drawn in green (BGR 0,255,0) on the top edge.
	px := frame.GetVecbAt(120, 150)
	if px[0] != 0 || px[1] != 255 || px[2] != 0 {
		t.Errorf("expected green outline pixel, got %v", px)
	}
}

func TestNewCascadeDetectorMissingFile(t *testing.T) {
	if _, err := NewCascadeDetector("/nonexistent/cascade.xml", DefaultDetectParams()); err == nil {
		t.Error("Expected error for missing cascade file")
	}
}

func TestCascadeDetectorBlankFrame(t *testing.T) {
	path := findCascadePath()
	if path == "" {
		t.Skip("Haar cascade not found, skipping test")
	}

	d, err := NewCascadeDetector(path, DefaultDetectParams())
	if err != nil {
		t.Fatalf("NewCascadeDetector failed: %v", err)
	}
	defer d.Close()

	frame := bgrMat(t, 240, 320, fill(bgrRed))
	defer frame.Close()
	if rects := d.Detect(frame); len(rects) != 0 {
		t.Errorf("Expected no faces in a blank frame, got %d", len(rects))
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if rects := d.Detect(empty); rects != nil {
		t.Errorf("Expected nil for empty frame, got %v", rects)
	}
}

// findCascadePath looks for the cascade relative to the test directory.
func findCascadePath() string {
	for _, p := range []string{
		DefaultCascadePath,
		filepath.Join("..", "..", DefaultCascadePath),
		"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
		"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
