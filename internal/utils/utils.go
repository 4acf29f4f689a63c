package utils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// --- 1. Process Safety & Error Reporting ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (ffmpeg logs)
// so a failed decode can be explained after the fact.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a command bound to ctx and attaches a buffer to its Stderr.
// It prepares the command for execution but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// ShowError prints a formatted error box, plus captured process logs if s is given.
func ShowError(context string, err error, s *SafeCommand) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 MASKGUARD ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}
	if s != nil && s.Stderr.Len() > 0 {
		fmt.Fprintf(os.Stderr, "\nPROCESS LOGS:\n%s\n", s.Stderr.String())
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// Die is the unified exit strategy for fatal startup errors.
func Die(context string, err error, s *SafeCommand) {
	ShowError(context, err, s)
	os.Exit(1)
}

// --- 2. Video Engine (used by scan) ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

type ffprobeOutput struct {
	Streams []struct {
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
		RFrameRate    string `json:"r_frame_rate"`
	} `json:"streams"`
}

func probe(ctx context.Context, path string, args ...string) (*ffprobeOutput, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	full := append([]string{"-v", "error", "-select_streams", "v:0"}, args...)
	full = append(full, "-of", "json", path)
	out, err := exec.CommandContext(ctx, "ffprobe", full...).Output()
	if err != nil {
		return nil, err
	}
	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	if len(res.Streams) == 0 {
		return nil, fmt.Errorf("no video stream in %s", path)
	}
	return &res, nil
}

// GetTotalFrames uses ffprobe to count frames for the progress bar.
// It returns 0 if the count fails, allowing the bar to fall back to a spinner.
func GetTotalFrames(ctx context.Context, path string) int {
	// Fast path: container metadata. Instant, but may be "N/A" for VFR.
	if res, err := probe(ctx, path, "-show_entries", "stream=nb_frames"); err == nil {
		if count, err := strconv.Atoi(res.Streams[0].NbFrames); err == nil && count > 0 {
			return count
		}
	} else {
		fmt.Fprintf(os.Stderr, "⚠️  %v. Progress will be shown as a spinner.\n", err)
		return 0
	}

	fmt.Fprintf(os.Stderr, "⏳ Metadata missing. Counting frames (this may take a moment)...\n")
	res, err := probe(ctx, path, "-count_packets", "-show_entries", "stream=nb_read_packets")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffprobe failed: %v\n", err)
		return 0
	}
	count, err := strconv.Atoi(res.Streams[0].NbReadPackets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffprobe integer parse error: %v\n", err)
		return 0
	}
	return count
}

// GetVideoFPS reads the stream frame rate, e.g. "30000/1001".
func GetVideoFPS(ctx context.Context, path string) (float64, error) {
	res, err := probe(ctx, path, "-show_entries", "stream=r_frame_rate")
	if err != nil {
		return 0, err
	}
	return ParseFrameRate(res.Streams[0].RFrameRate)
}

// ParseFrameRate parses ffprobe's rational ("30/1") or plain ("25") rates.
func ParseFrameRate(s string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", s, err)
	}
	d := 1.0
	if found {
		if d, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, fmt.Errorf("invalid frame rate %q: %w", s, err)
		}
	}
	if n <= 0 || d <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	return n / d, nil
}

// SplitJpeg is the custom splitter for bufio.Scanner.
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// NewFFmpegDecoder creates the MJPEG decoder pipe.
// Frames arrive on Stdout as back-to-back JPEGs that SplitJpeg can cut apart.
func NewFFmpegDecoder(ctx context.Context, inputPath string) *SafeCommand {
	return NewSafeCommand(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error",
		"-i", inputPath, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3", "-")
}

// GenerateVideoID creates a deterministic hash for the video file
// based on its path, size, and modification time.
func GenerateVideoID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}

// FmtTime renders seconds as HH:MM:SS.
func FmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
