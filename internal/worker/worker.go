package worker

import (
	"fmt"

	"github.com/andresmejia3/maskguard/internal/mask"
	"github.com/andresmejia3/maskguard/internal/types"
	"github.com/andresmejia3/maskguard/internal/vision"
	"gocv.io/x/gocv"
)

// EngineConfig holds what every engine in a pool shares.
type EngineConfig struct {
	CascadePath string
	Detect      vision.DetectParams
	Palette     mask.Config
}

// Engine is one goroutine's detector and classifier. Engines are not safe
// for concurrent use; the scan pool creates one per worker.
type Engine struct {
	ID       int
	detector vision.FaceDetector
	pipeline *vision.Pipeline
}

// NewEngine loads a fresh cascade for this engine.
func NewEngine(id int, cfg EngineConfig) (*Engine, error) {
	classifier, err := mask.New(cfg.Palette)
	if err != nil {
		return nil, fmt.Errorf("engine %d: invalid palette: %w", id, err)
	}
	detector, err := vision.NewCascadeDetector(cfg.CascadePath, cfg.Detect)
	if err != nil {
		return nil, fmt.Errorf("engine %d failed to start: %w", id, err)
	}
	return newEngine(id, detector, classifier), nil
}

func newEngine(id int, detector vision.FaceDetector, classifier *mask.Classifier) *Engine {
	return &Engine{
		ID:       id,
		detector: detector,
		pipeline: &vision.Pipeline{Detector: detector, Classifier: classifier},
	}
}

// ProcessFrame decodes a JPEG frame and classifies every face in it.
func (e *Engine) ProcessFrame(task types.FrameTask) (types.FrameResult, error) {
	if len(task.Data) == 0 {
		return types.FrameResult{}, fmt.Errorf("frame %d: empty payload", task.Index)
	}

	img, err := gocv.IMDecode(task.Data, gocv.IMReadColor)
	if err != nil {
		return types.FrameResult{}, fmt.Errorf("frame %d: decode image: %w", task.Index, err)
	}
	defer img.Close()

	if img.Empty() {
		return types.FrameResult{}, fmt.Errorf("frame %d: empty image", task.Index)
	}

	stats := e.pipeline.Analyze(img)
	return types.FrameResult{
		Index:    task.Index,
		Faces:    stats.Faces,
		Masked:   stats.Masked,
		Verdicts: stats.Verdicts,
	}, nil
}

// Close releases the engine's detector.
func (e *Engine) Close() error {
	return e.detector.Close()
}
