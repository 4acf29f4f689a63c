package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/maskguard/internal/logging"
	"github.com/andresmejia3/maskguard/internal/session"
	"github.com/andresmejia3/maskguard/internal/store"
	"github.com/andresmejia3/maskguard/internal/utils"
	"github.com/andresmejia3/maskguard/internal/vision"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var runOpts Options

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Detect masks live from a webcam",
	Run: func(cmd *cobra.Command, args []string) {
		runLive(cmd.Context(), runOpts)
	},
}

func init() {
	runCmd.Flags().IntVarP(&runOpts.Device, "device", "c", 0, "Camera device index")
	runCmd.Flags().StringVar(&runOpts.CascadePath, "cascade", vision.DefaultCascadePath, "Path to the Haar face cascade XML")
	runCmd.Flags().StringVarP(&runOpts.PalettePath, "palette", "p", "", "YAML palette overriding the mask colour ranges and threshold")
	runCmd.Flags().StringVarP(&runOpts.OutputDir, "dir", "d", ".", "Directory for screenshots")
	runCmd.Flags().StringVar(&runOpts.WindowTitle, "window", "Face Mask Detection System", "Display window title")
	runCmd.Flags().IntVar(&runOpts.MinFaceSize, "min-face", 50, "Minimum face size in pixels")
	rootCmd.AddCommand(runCmd)
}

// screenshotRecorder stores screenshot metadata against the live session.
type screenshotRecorder struct {
	db        *store.Store
	sessionID string
}

func (r *screenshotRecorder) RecordScreenshot(ctx context.Context, shot session.Screenshot) error {
	return r.db.InsertScreenshot(ctx, r.sessionID, shot.Number, shot.Path, shot.Faces, shot.Masked, shot.At)
}

func runLive(ctx context.Context, opts Options) {
	fmt.Fprintln(os.Stderr, "=== Face Mask Detection System ===")
	fmt.Fprintf(os.Stderr, "OpenCV Version: %s\n", gocv.OpenCVVersion())

	if err := validateRunFlags(&opts); err != nil {
		utils.Die("Invalid flags", err, nil)
	}

	classifier, err := loadClassifier(opts.PalettePath)
	if err != nil {
		utils.Die("Failed to load mask palette", err, nil)
	}

	webcam, err := gocv.OpenVideoCapture(opts.Device)
	if err != nil || !webcam.IsOpened() {
		fmt.Fprintln(os.Stderr, "❌ ERROR: Camera could not be opened!")
		fmt.Fprintln(os.Stderr, "Solutions:")
		fmt.Fprintln(os.Stderr, "1. Check that the camera is connected properly")
		fmt.Fprintln(os.Stderr, "2. Close other applications using the camera")
		fmt.Fprintln(os.Stderr, "3. Check camera permissions")
		if webcam != nil {
			webcam.Close()
		}
		utils.Die(fmt.Sprintf("Failed to open camera device %d", opts.Device), err, nil)
	}

	params := vision.DefaultDetectParams()
	params.MinSize = opts.MinFaceSize
	detector, err := vision.NewCascadeDetector(opts.CascadePath, params)
	if err != nil {
		webcam.Close()
		utils.Die("Failed to load face detector", err, nil)
	}
	defer detector.Close()

	log := logging.WithOperation(Logger, "run", "")
	var recorder session.Recorder
	var sessionID string
	if DB != nil {
		sessionID, err = DB.StartSession(ctx, store.KindLive, fmt.Sprintf("camera:%d", opts.Device))
		if err != nil {
			webcam.Close()
			utils.Die("Failed to register session", err, nil)
		}
		log = logging.WithOperation(Logger, "run", sessionID)
		recorder = &screenshotRecorder{db: DB, sessionID: sessionID}
	}

	fmt.Fprintln(os.Stderr, "\n✅ System Ready!")
	fmt.Fprintln(os.Stderr, "📹 Camera started successfully")
	fmt.Fprintln(os.Stderr, "👥 Face detection activated")
	fmt.Fprintln(os.Stderr, "😷 Mask detection enabled")
	fmt.Fprintln(os.Stderr, "\nControls:")
	fmt.Fprintln(os.Stderr, "- Press 'q' to quit")
	fmt.Fprintln(os.Stderr, "- Press 's' to take screenshot")

	shell := &session.Shell{
		Camera:    webcam,
		Display:   gocv.NewWindow(opts.WindowTitle),
		Processor: &vision.Pipeline{Detector: detector, Classifier: classifier, ShowHint: true},
		Recorder:  recorder,
		Dir:       opts.OutputDir,
		Logger:    log,
	}
	state := shell.Run(ctx, session.State{})
	log.Debug("loop ended", zap.String("reason", string(state.StopReason)), zap.Int("frames", state.Frames))

	if DB != nil {
		totals := store.Totals{Frames: state.Frames, Faces: state.Faces, Masked: state.Masked, Screenshots: state.Screenshots}
		// The run context may already be cancelled by Ctrl+C.
		if err := DB.FinishSession(context.Background(), sessionID, totals); err != nil {
			log.Warn("session not finalized", zap.Error(err))
		}
	}

	fmt.Fprintln(os.Stderr, "\n✅ Program ended successfully!")
	fmt.Fprintf(os.Stderr, "📸 Total screenshots taken: %d\n", state.Screenshots)
}

// validateRunFlags checks CLI arguments before the camera is touched.
func validateRunFlags(opts *Options) error {
	if opts.Device < 0 {
		return fmt.Errorf("device index must be >= 0, got %d", opts.Device)
	}
	if opts.MinFaceSize < 1 {
		return fmt.Errorf("min-face must be >= 1, got %d", opts.MinFaceSize)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	info, err := os.Stat(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("screenshot directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("screenshot directory %s is not a directory", opts.OutputDir)
	}
	if opts.PalettePath != "" {
		if _, err := os.Stat(opts.PalettePath); err != nil {
			return fmt.Errorf("palette file: %w", err)
		}
	}
	return nil
}
