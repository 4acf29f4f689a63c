// Package session drives the live capture loop: read a frame, annotate it,
// show it, and react to the quit and screenshot keys.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andresmejia3/maskguard/internal/vision"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Keyboard commands.
const (
	KeyQuit       = 'q'
	KeyScreenshot = 's'
)

// KeyPollDelay is the WaitKey timeout in milliseconds.
const KeyPollDelay = 1

// StopReason says why the loop ended.
type StopReason string

const (
	StopQuit          StopReason = "quit"
	StopCaptureFailed StopReason = "capture-failed"
	StopInterrupted   StopReason = "interrupted"
)

// Camera is satisfied by *gocv.VideoCapture.
type Camera interface {
	Read(frame *gocv.Mat) bool
	Close() error
}

// Display is satisfied by *gocv.Window.
type Display interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
	Close() error
}

// Processor annotates a frame in place. *vision.Pipeline implements it.
type Processor interface {
	Process(frame *gocv.Mat) vision.FrameStats
}

// Screenshot describes a saved frame.
type Screenshot struct {
	Number int
	Path   string
	Faces  int
	Masked int
	At     time.Time
}

// Recorder persists screenshot metadata. Optional.
type Recorder interface {
	RecordScreenshot(ctx context.Context, shot Screenshot) error
}

// Snapshotter writes a frame to disk and reports success.
type Snapshotter func(path string, frame gocv.Mat) bool

// State is the session's running tally. Run takes one in and hands back the
// updated copy.
type State struct {
	Screenshots int
	Frames      int
	Faces       int
	Masked      int
	StopReason  StopReason
}

// Shell owns the camera and the window for the duration of Run.
type Shell struct {
	Camera    Camera
	Display   Display
	Processor Processor
	Recorder  Recorder    // nil disables persistence
	Snapshot  Snapshotter // nil means gocv.IMWrite
	Dir       string      // screenshot directory, "" means the working directory
	Logger    *zap.Logger
	Out       io.Writer // console messages, nil means os.Stderr
}

// ScreenshotName is the file name for the n-th screenshot of a session.
func ScreenshotName(n int) string {
	return fmt.Sprintf("screenshot_%d.jpg", n)
}

// Run loops until the quit key, a failed frame read, or ctx is cancelled.
// The camera and display are closed before it returns, whatever the cause.
func (s *Shell) Run(ctx context.Context, state State) State {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := s.Out
	if out == nil {
		out = os.Stderr
	}
	snapshot := s.Snapshot
	if snapshot == nil {
		snapshot = gocv.IMWrite
	}

	defer func() {
		if err := s.Camera.Close(); err != nil {
			logger.Warn("camera close failed", zap.Error(err))
		}
		if err := s.Display.Close(); err != nil {
			logger.Warn("window close failed", zap.Error(err))
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if ctx.Err() != nil {
			state.StopReason = StopInterrupted
			return state
		}

		if ok := s.Camera.Read(&frame); !ok || frame.Empty() {
			fmt.Fprintln(out, "❌ Frame capture failed!")
			state.StopReason = StopCaptureFailed
			return state
		}

		stats := s.Processor.Process(&frame)
		state.Frames++
		state.Faces += stats.Faces
		state.Masked += stats.Masked

		s.Display.IMShow(frame)

		switch s.Display.WaitKey(KeyPollDelay) & 0xFF {
		case KeyQuit:
			state.StopReason = StopQuit
			return state
		case KeyScreenshot:
			n := state.Screenshots + 1
			path := filepath.Join(s.Dir, ScreenshotName(n))
			if !snapshot(path, frame) {
				fmt.Fprintf(out, "⚠️  Failed to save screenshot: %s\n", path)
				logger.Warn("screenshot write failed", zap.String("path", path))
				continue
			}
			state.Screenshots = n
			fmt.Fprintf(out, "📸 Screenshot saved: %s\n", path)

			if s.Recorder != nil {
				shot := Screenshot{Number: n, Path: path, Faces: stats.Faces, Masked: stats.Masked, At: time.Now()}
				if err := s.Recorder.RecordScreenshot(ctx, shot); err != nil {
					logger.Warn("screenshot not recorded", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}
