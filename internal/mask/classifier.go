// Package mask decides whether a face region is covered by a mask by
// measuring how much of it falls inside a palette of mask colours.
package mask

import "fmt"

// Result is the verdict for a single face region.
type Result struct {
	Masked     bool    `json:"masked"`
	Confidence float64 `json:"confidence"` // percent of pixels matching the palette, 0-100
}

// Classifier scores regions against a validated Config.
type Classifier struct {
	cfg Config
}

// New validates cfg and returns a Classifier using it.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Config returns the colour model in use.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Matches reports whether p falls inside any range of the palette.
func (c *Classifier) Matches(p HSV) bool {
	for _, r := range c.cfg.ColorRanges {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

// Classify scores a region given as HSV pixels. An empty region is not masked
// and has zero confidence.
func (c *Classifier) Classify(pixels []HSV) Result {
	if len(pixels) == 0 {
		return Result{}
	}

	matched := 0
	for _, p := range pixels {
		if c.Matches(p) {
			matched++
		}
	}
	return c.verdict(matched, len(pixels))
}

func (c *Classifier) verdict(matched, total int) Result {
	confidence := 100 * float64(matched) / float64(total)
	return Result{
		Masked:     confidence > c.cfg.MaskThreshold,
		Confidence: confidence,
	}
}

// Label renders a Result for on-screen display. The unmasked figure is the
// complement of the mask-colour percentage.
func Label(res Result) string {
	if res.Masked {
		return fmt.Sprintf("MASK (%.1f%%)", res.Confidence)
	}
	return fmt.Sprintf("NO MASK (%.1f%%)", 100-res.Confidence)
}
