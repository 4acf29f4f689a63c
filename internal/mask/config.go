package mask

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultThreshold is the mask-colour percentage a face must exceed to count as masked.
const DefaultThreshold = 15.0

// MaxHue is the top of the 8-bit hue scale (degrees halved).
const MaxHue = 180

// HSV is a pixel on the 8-bit OpenCV scale: H in [0,180], S and V in [0,255].
type HSV struct {
	H, S, V uint8
}

// MarshalYAML writes the triple as a flow sequence [h, s, v].
func (c HSV) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []uint8{c.H, c.S, c.V} {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(v)})
	}
	return node, nil
}

// UnmarshalYAML reads a [h, s, v] sequence.
func (c *HSV) UnmarshalYAML(value *yaml.Node) error {
	var raw []int
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("hsv triple must have 3 values, got %d", len(raw))
	}
	for i, v := range raw {
		if v < 0 || v > 255 {
			return fmt.Errorf("hsv channel %d out of range: %d", i, v)
		}
	}
	*c = HSV{H: uint8(raw[0]), S: uint8(raw[1]), V: uint8(raw[2])}
	return nil
}

// ColorRange is an inclusive box in HSV space.
type ColorRange struct {
	Label string `yaml:"label"`
	Low   HSV    `yaml:"low"`
	High  HSV    `yaml:"high"`
}

// Contains reports whether p lies inside the range on all three channels.
func (r ColorRange) Contains(p HSV) bool {
	return p.H >= r.Low.H && p.H <= r.High.H &&
		p.S >= r.Low.S && p.S <= r.High.S &&
		p.V >= r.Low.V && p.V <= r.High.V
}

// Config is the colour model used by the Classifier.
type Config struct {
	MaskThreshold float64      `yaml:"mask_threshold"`
	ColorRanges   []ColorRange `yaml:"color_ranges"`
}

// DefaultConfig returns the blue / white / black surgical-mask palette.
func DefaultConfig() Config {
	return Config{
		MaskThreshold: DefaultThreshold,
		ColorRanges: []ColorRange{
			{Label: "blue", Low: HSV{100, 50, 50}, High: HSV{130, 255, 255}},
			{Label: "white", Low: HSV{0, 0, 200}, High: HSV{180, 30, 255}},
			{Label: "black", Low: HSV{0, 0, 0}, High: HSV{180, 255, 50}},
		},
	}
}

// Validate checks the threshold and every colour range.
func (c Config) Validate() error {
	var errs []error
	if !(c.MaskThreshold >= 0 && c.MaskThreshold <= 100) {
		errs = append(errs, fmt.Errorf("mask_threshold must be between 0 and 100, got %.2f", c.MaskThreshold))
	}
	if len(c.ColorRanges) == 0 {
		errs = append(errs, errors.New("at least one color range is required"))
	}
	for i, r := range c.ColorRanges {
		if r.Label == "" {
			errs = append(errs, fmt.Errorf("color range %d has no label", i))
		}
		if r.Low.H > MaxHue || r.High.H > MaxHue {
			errs = append(errs, fmt.Errorf("color range %q: hue must be <= %d", r.Label, MaxHue))
		}
		if r.Low.H > r.High.H || r.Low.S > r.High.S || r.Low.V > r.High.V {
			errs = append(errs, fmt.Errorf("color range %q: low bound exceeds high bound", r.Label))
		}
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML palette file. Fields left out of the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read palette: %w", err)
	}

	var file struct {
		MaskThreshold *float64     `yaml:"mask_threshold"`
		ColorRanges   []ColorRange `yaml:"color_ranges"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse palette %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if file.MaskThreshold != nil {
		cfg.MaskThreshold = *file.MaskThreshold
	}
	if len(file.ColorRanges) > 0 {
		cfg.ColorRanges = file.ColorRanges
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid palette %s: %w", path, err)
	}
	return cfg, nil
}
