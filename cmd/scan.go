package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/maskguard/internal/logging"
	"github.com/andresmejia3/maskguard/internal/store"
	"github.com/andresmejia3/maskguard/internal/types"
	"github.com/andresmejia3/maskguard/internal/utils"
	"github.com/andresmejia3/maskguard/internal/vision"
	"github.com/andresmejia3/maskguard/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const megabyte = 1024 * 1024

// frameStatBatch is how many per-frame rows are buffered before a COPY.
const frameStatBatch = 500

var (
	scanOpts        Options
	scanGracePeriod string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a video file for unmasked faces with parallel engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runScan(cmd.Context(), scanOpts)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.InputPath, "input", "i", "", "Path to video")
	scanCmd.Flags().IntVarP(&scanOpts.NthFrame, "nth-frame", "n", 5, "Analyze every nth frame")
	scanCmd.Flags().IntVarP(&scanOpts.NumEngines, "engines", "e", 2, "Number of parallel engine workers")
	scanCmd.Flags().StringVar(&scanOpts.CascadePath, "cascade", vision.DefaultCascadePath, "Path to the Haar face cascade XML")
	scanCmd.Flags().StringVarP(&scanOpts.PalettePath, "palette", "p", "", "YAML palette overriding the mask colour ranges and threshold")
	scanCmd.Flags().IntVar(&scanOpts.MinFaceSize, "min-face", 50, "Minimum face size in pixels")
	scanCmd.Flags().StringVarP(&scanGracePeriod, "grace-period", "g", "1s", "How long no unmasked face may be seen before an unmasked episode is closed")

	scanCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scanCmd)
}

// Buffer pool to reduce GC pressure during scanning
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

// scanResult wraps the output from an engine to be sent to the aggregator
type scanResult struct {
	types.FrameResult
	Err error
}

// runScan orchestrates the video scan: engine pool, FFmpeg streaming, and progress tracking.
func runScan(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateScanFlags(&opts); err != nil {
		return err
	}
	gracePeriod, _ := time.ParseDuration(scanGracePeriod)

	classifier, err := loadClassifier(opts.PalettePath)
	if err != nil {
		utils.ShowError("Failed to load mask palette", err, nil)
		return err
	}

	videoID, err := utils.GenerateVideoID(opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to generate video ID", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "📼 Processing Video ID: %s\n", videoID[:12])

	fps, err := utils.GetVideoFPS(ctx, opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to determine video FPS", err, nil)
		return err
	}

	var sessionID string
	if DB != nil {
		if sessionID, err = DB.StartSession(ctx, store.KindScan, opts.InputPath); err != nil {
			utils.ShowError("Failed to register scan session", err, nil)
			return err
		}
	}
	log := logging.WithOperation(Logger, "scan", sessionID)

	totalVideoFrames := utils.GetTotalFrames(ctx, opts.InputPath)
	if totalVideoFrames <= 0 {
		totalVideoFrames = -1
	}
	bar := progressbar.NewOptions(totalVideoFrames,
		progressbar.OptionSetDescription("😷 Mask Scan"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	params := vision.DefaultDetectParams()
	params.MinSize = opts.MinFaceSize
	engineCfg := worker.EngineConfig{CascadePath: opts.CascadePath, Detect: params, Palette: classifier.Config()}

	// Start every engine up front so a bad cascade fails before FFmpeg runs.
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Worker Engines...\n", opts.NumEngines)
	engines := make([]*worker.Engine, 0, opts.NumEngines)
	for i := 0; i < opts.NumEngines; i++ {
		e, err := worker.NewEngine(i, engineCfg)
		if err != nil {
			for _, started := range engines {
				started.Close()
			}
			utils.ShowError("Engine startup failed", err, nil)
			return err
		}
		engines = append(engines, e)
	}

	closeEngines := func() {
		for _, e := range engines {
			e.Close()
		}
	}

	ffmpeg := utils.NewFFmpegDecoder(ctx, opts.InputPath)
	ffmpegOut, err := ffmpeg.StdoutPipe()
	if err != nil {
		closeEngines()
		utils.ShowError("Failed to create FFmpeg stdout pipe", err, nil)
		return err
	}
	defer ffmpegOut.Close()

	if err := ffmpeg.Start(); err != nil {
		closeEngines()
		utils.ShowError("Failed to start FFmpeg", err, ffmpeg)
		return err
	}

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan scanResult, opts.NumEngines*2)
	var wg sync.WaitGroup

	// Start Aggregator (Consumer). Must run concurrently to prevent deadlock on resultsChan.
	agg := newScanAggregator(fps, opts.NthFrame, gracePeriod)
	aggDone := make(chan error, 1)
	go func() {
		// Rows already analyzed are still written after Ctrl+C.
		aggDone <- processResults(context.WithoutCancel(ctx), resultsChan, agg, sessionID, log)
	}()

	for _, e := range engines {
		wg.Add(1)
		go func(e *worker.Engine) {
			defer wg.Done()
			defer e.Close()
			runEngine(e, taskChan, resultsChan, sessionID, log)
		}(e)
	}

	// Frame Splitter & Nth-Frame Logic
	scanner := bufio.NewScanner(ffmpegOut)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	totalFrames := 0
	sentFrames := 0
	interrupted := false
feed:
	for scanner.Scan() {
		totalFrames++
		bar.Add(1)

		if totalFrames%opts.NthFrame != 0 {
			continue
		}
		buf := frameBufferPool.Get().([]byte)
		if cap(buf) < len(scanner.Bytes()) {
			buf = make([]byte, len(scanner.Bytes()))
		}
		buf = buf[:len(scanner.Bytes())]
		copy(buf, scanner.Bytes())

		select {
		case taskChan <- types.FrameTask{Index: totalFrames, Data: buf}:
			sentFrames++
		case <-ctx.Done():
			interrupted = true
			break feed
		}
	}

	if ctx.Err() != nil {
		interrupted = true
	}

	close(taskChan)
	wg.Wait()
	close(resultsChan)
	aggErr := <-aggDone

	if interrupted {
		cancel()
		_ = ffmpeg.Wait()
		fmt.Fprintln(os.Stderr, "\n🛑 Scan interrupted.")
	} else {
		if err := scanner.Err(); err != nil {
			utils.ShowError("Frame scanner failed", err, nil)
			return err
		}
		if err := ffmpeg.Wait(); err != nil {
			utils.ShowError("FFmpeg execution failed", err, ffmpeg)
			return err
		}
	}
	bar.Finish()

	if aggErr != nil {
		utils.ShowError("Failed to persist frame statistics", aggErr, nil)
	}

	if DB != nil {
		t := agg.totals()
		if err := DB.FinishSession(context.Background(), sessionID, store.Totals{Frames: t.Frames, Faces: t.Faces, Masked: t.Masked}); err != nil {
			log.Warn("session not finalized", zap.Error(err))
		}
	}

	printScanSummary(agg, sentFrames, totalFrames)
	return aggErr
}

// runEngine reads tasks from the channel and forwards verdicts to the aggregator.
func runEngine(e *worker.Engine, tasks <-chan types.FrameTask, results chan<- scanResult, sessionID string, log *zap.Logger) {
	for task := range tasks {
		res, err := e.ProcessFrame(task)

		// Return buffer to pool once decoded
		frameBufferPool.Put(task.Data[:0])

		if err != nil {
			frameErr := logging.NewFrameError("scan.frame", sessionID, e.ID, task.Index, err)
			log.Warn("frame skipped", frameErr.Fields()...)
			// Still report the index so the aggregator does not stall waiting for it.
			results <- scanResult{FrameResult: types.FrameResult{Index: task.Index}, Err: frameErr}
			continue
		}
		results <- scanResult{FrameResult: res}
	}
}

// processResults feeds engine output to the aggregator and flushes per-frame rows to the DB.
func processResults(ctx context.Context, results <-chan scanResult, agg *scanAggregator, sessionID string, log *zap.Logger) error {
	var firstErr error
	flush := func() {
		batch := agg.drainPending()
		if DB == nil || len(batch) == 0 || firstErr != nil {
			return
		}
		if err := DB.InsertFrameStats(ctx, sessionID, batch); err != nil {
			firstErr = err
			log.Error("frame stats not persisted", zap.Error(err))
		}
	}

	for res := range results {
		agg.add(res)
		if agg.pendingLen() >= frameStatBatch {
			flush()
		}
	}
	agg.finish()
	flush()
	return firstErr
}

// --- Aggregation ---

type timeRange struct {
	Start float64
	End   float64
	Peak  int // most unmasked faces seen at once
}

type scanTotals struct {
	Frames int
	Failed int
	Faces  int
	Masked int
}

// scanAggregator restores frame order and tracks episodes with unmasked faces.
type scanAggregator struct {
	fps     float64
	nth     int
	maxGap  int // frames an episode may go without an unmasked face
	next    int
	buffer  map[int]scanResult
	t       scanTotals
	open    *timeRange
	lastHit int
	ranges  []timeRange
	pending []store.FrameStat
}

func newScanAggregator(fps float64, nth int, grace time.Duration) *scanAggregator {
	maxGap := int(grace.Seconds() * fps)
	if maxGap < nth {
		maxGap = nth // Ensure at least one sampled frame of slack
	}
	return &scanAggregator{
		fps:    fps,
		nth:    nth,
		maxGap: maxGap,
		next:   nth, // frames are 1-indexed and sampled at multiples of nth
		buffer: make(map[int]scanResult),
	}
}

// add buffers res and processes every frame that is now in order.
func (a *scanAggregator) add(res scanResult) {
	a.buffer[res.Index] = res
	for {
		frame, ok := a.buffer[a.next]
		if !ok {
			return
		}
		delete(a.buffer, a.next)
		a.observe(frame)
		a.next += a.nth
	}
}

func (a *scanAggregator) observe(frame scanResult) {
	a.t.Frames++
	if frame.Err != nil {
		a.t.Failed++
		return
	}
	a.t.Faces += frame.Faces
	a.t.Masked += frame.Masked
	a.pending = append(a.pending, store.FrameStat{FrameIndex: frame.Index, Faces: frame.Faces, Masked: frame.Masked})

	unmasked := frame.Faces - frame.Masked
	sec := float64(frame.Index) / a.fps

	if a.open != nil && frame.Index-a.lastHit > a.maxGap {
		a.closeOpen()
	}
	if unmasked == 0 {
		return
	}
	if a.open == nil {
		a.open = &timeRange{Start: sec}
	}
	a.open.End = sec
	if unmasked > a.open.Peak {
		a.open.Peak = unmasked
	}
	a.lastHit = frame.Index
}

func (a *scanAggregator) closeOpen() {
	a.ranges = append(a.ranges, *a.open)
	a.open = nil
}

// finish closes a trailing episode.
func (a *scanAggregator) finish() {
	if a.open != nil {
		a.closeOpen()
	}
}

func (a *scanAggregator) pendingLen() int { return len(a.pending) }

func (a *scanAggregator) drainPending() []store.FrameStat {
	out := a.pending
	a.pending = nil
	return out
}

func (a *scanAggregator) totals() scanTotals { return a.t }

func (a *scanAggregator) episodes() []timeRange { return a.ranges }

func printScanSummary(agg *scanAggregator, sentFrames, totalFrames int) {
	t := agg.totals()

	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 SCAN SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🎞️  Keyframes analyzed:   %d of %d total (%d sent)\n", t.Frames, totalFrames, sentFrames)
	if t.Failed > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Frames skipped:       %d\n", t.Failed)
	}
	fmt.Fprintf(os.Stderr, "👥 Face detections:      %d\n", t.Faces)
	fmt.Fprintf(os.Stderr, "😷 With mask:            %d\n", t.Masked)
	fmt.Fprintf(os.Stderr, "🚫 Without mask:         %d\n", t.Faces-t.Masked)
	if t.Faces > 0 {
		fmt.Fprintf(os.Stderr, "📈 Mask rate:            %.1f%%\n", 100*float64(t.Masked)/float64(t.Faces))
	}

	if eps := agg.episodes(); len(eps) > 0 {
		fmt.Fprintf(os.Stderr, "\n🚫 Unmasked episodes:\n")
		for _, r := range eps {
			fmt.Fprintf(os.Stderr, "   %s -> %s (up to %d unmasked)\n", utils.FmtTime(r.Start), utils.FmtTime(r.End), r.Peak)
		}
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// validateScanFlags ensures all CLI arguments are valid before starting heavy processes.
func validateScanFlags(opts *Options) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ShowError("Input file does not exist", err, nil)
			return err
		}
		utils.ShowError("Unable to access input file", err, nil)
		return err
	}
	if info.IsDir() {
		err := fmt.Errorf("input path %s is a directory, expected a video file", opts.InputPath)
		utils.ShowError("Invalid input", err, nil)
		return err
	}
	if opts.NthFrame < 1 {
		err := fmt.Errorf("must be >= 1, got %d", opts.NthFrame)
		utils.ShowError("Invalid nth-frame interval", err, nil)
		return err
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if opts.MinFaceSize < 1 {
		err := fmt.Errorf("must be >= 1, got %d", opts.MinFaceSize)
		utils.ShowError("Invalid min-face size", err, nil)
		return err
	}
	if _, err := time.ParseDuration(scanGracePeriod); err != nil {
		utils.ShowError("Invalid grace-period format (use '2s', '500ms')", err, nil)
		return err
	}
	return nil
}
