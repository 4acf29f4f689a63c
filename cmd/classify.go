package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/maskguard/internal/mask"
	"github.com/andresmejia3/maskguard/internal/types"
	"github.com/andresmejia3/maskguard/internal/utils"
	"github.com/andresmejia3/maskguard/internal/vision"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var (
	classifyOpts   Options
	classifyWhole  bool
	classifyJSON   bool
	classifyOutput string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image_path>",
	Short: "Detect faces in a still image and classify each for a mask",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runClassify(args[0], classifyOpts)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyOpts.CascadePath, "cascade", vision.DefaultCascadePath, "Path to the Haar face cascade XML")
	classifyCmd.Flags().StringVarP(&classifyOpts.PalettePath, "palette", "p", "", "YAML palette overriding the mask colour ranges and threshold")
	classifyCmd.Flags().IntVar(&classifyOpts.MinFaceSize, "min-face", 50, "Minimum face size in pixels")
	classifyCmd.Flags().BoolVarP(&classifyWhole, "whole", "w", false, "Skip detection and classify the whole image as one face region")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print verdicts as JSON")
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "", "Write the annotated image to this path")
	rootCmd.AddCommand(classifyCmd)
}

// classifyReport is the machine-readable result of classify.
type classifyReport struct {
	Image    string              `json:"image"`
	Faces    int                 `json:"faces"`
	Masked   int                 `json:"masked"`
	Verdicts []types.FaceVerdict `json:"verdicts"`
}

func runClassify(imagePath string, opts Options) error {
	if _, err := os.Stat(imagePath); err != nil {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}

	classifier, err := loadClassifier(opts.PalettePath)
	if err != nil {
		utils.ShowError("Failed to load mask palette", err, nil)
		return err
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		err := fmt.Errorf("%s could not be decoded as an image", imagePath)
		utils.ShowError("Failed to read image", err, nil)
		return err
	}

	pipeline := &vision.Pipeline{Classifier: classifier}
	var stats vision.FrameStats
	if classifyWhole {
		stats = wholeImageStats(classifier, img)
	} else {
		params := vision.DefaultDetectParams()
		params.MinSize = opts.MinFaceSize
		detector, err := vision.NewCascadeDetector(opts.CascadePath, params)
		if err != nil {
			utils.ShowError("Failed to load face detector", err, nil)
			return err
		}
		defer detector.Close()

		pipeline.Detector = detector
		stats = pipeline.Analyze(img)
	}

	report := classifyReport{Image: imagePath, Faces: stats.Faces, Masked: stats.Masked, Verdicts: stats.Verdicts}
	if err := writeReport(os.Stdout, report, classifyJSON); err != nil {
		utils.ShowError("Failed to write report", err, nil)
		return err
	}

	if classifyOutput != "" {
		pipeline.Annotate(&img, stats)
		if ok := gocv.IMWrite(classifyOutput, img); !ok {
			err := fmt.Errorf("could not write %s", classifyOutput)
			utils.ShowError("Failed to save annotated image", err, nil)
			return err
		}
		fmt.Fprintf(os.Stderr, "🖼️  Annotated image saved: %s\n", classifyOutput)
	}
	return nil
}

// wholeImageStats treats the entire image as a single face region.
func wholeImageStats(c *mask.Classifier, img gocv.Mat) vision.FrameStats {
	res := vision.ClassifyRegion(c, img)
	stats := vision.FrameStats{
		Faces: 1,
		Verdicts: []types.FaceVerdict{{
			Box:    types.Box{W: img.Cols(), H: img.Rows()},
			Result: res,
			Label:  mask.Label(res),
		}},
	}
	if res.Masked {
		stats.Masked = 1
	}
	return stats
}

func writeReport(w io.Writer, report classifyReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Faces == 0 {
		_, err := fmt.Fprintln(w, "❌ No faces detected in the provided image.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "#\tBOX\tVERDICT")
	fmt.Fprintln(tw, "-\t---\t-------")
	for i, v := range report.Verdicts {
		fmt.Fprintf(tw, "%d\t%dx%d+%d+%d\t%s\n", i+1, v.Box.W, v.Box.H, v.Box.X, v.Box.Y, v.Label)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n👥 Faces: %d   😷 With mask: %d   🚫 Without mask: %d\n",
		report.Faces, report.Masked, report.Faces-report.Masked)
	return err
}
