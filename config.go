package scanview

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/world"
)

// Color decodes from "#rrggbb", "#rrggbbaa" or a list of 3 or 4 floats.
type Color [4]float32

func (c *Color) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := parseHexColor(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*c = v
		return nil
	case yaml.SequenceNode:
		var f []float32
		if err := n.Decode(&f); err != nil {
			return err
		}
		if len(f) != 3 && len(f) != 4 {
			return fmt.Errorf("line %d: colour needs 3 or 4 components, got %d", n.Line, len(f))
		}
		*c = Color{f[0], f[1], f[2], 1}
		if len(f) == 4 {
			c[3] = f[3]
		}
		return nil
	}
	return fmt.Errorf("line %d: unsupported colour value", n.Line)
}

func (c Color) MarshalYAML() (any, error) {
	b := func(v float32) uint8 { return uint8(min(max(v, 0), 1)*255 + 0.5) }
	if c[3] >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", b(c[0]), b(c[1]), b(c[2])), nil
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", b(c[0]), b(c[1]), b(c[2]), b(c[3])), nil
}

func parseHexColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return Color{}, fmt.Errorf("bad colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("bad colour %q", s)
	}
	if len(h) == 6 {
		return Color(core.RGB(uint32(v))), nil
	}
	c := Color(core.RGB(uint32(v >> 8)))
	c[3] = float32(v&0xff) / 255
	return c, nil
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type Config struct {
	Window WindowConfig `yaml:"window"`
	Debug  bool         `yaml:"debug"`

	Background        Color            `yaml:"background"`
	OverlayBackground Color            `yaml:"overlayBackground"`
	Colors            map[string]Color `yaml:"colors"`
	Layers            world.Layers     `yaml:"layers"`

	PointSize       float32 `yaml:"pointSize"`
	LineWidth       float32 `yaml:"lineWidth"`
	MarkerSize      float32 `yaml:"markerSize"`
	GridDivisions   int     `yaml:"gridDivisions"`
	ProximityRadius float32 `yaml:"proximityRadius"`

	ClickWindow    time.Duration `yaml:"clickWindow"`
	ClickTravel    float32       `yaml:"clickTravel"`
	MaxTextureSize int           `yaml:"maxTextureSize"`

	// SnapshotSize is the resolution of a snapshot requested from the
	// keyboard; SnapshotPath, when set, receives the PNG.
	SnapshotSize [2]int `yaml:"snapshotSize"`
	SnapshotPath string `yaml:"snapshotPath"`
}

func DefaultConfig() Config {
	return Config{
		Window:            WindowConfig{Width: 1280, Height: 800, Title: "scanview"},
		Background:        Color(core.RGB(0xecf3f0)),
		OverlayBackground: Color(core.RGB(0x1f2426)),
		Layers:            world.AllLayers(),
		PointSize:         1,
		LineWidth:         2,
		MarkerSize:        15,
		GridDivisions:     10,
		ProximityRadius:   2,
		ClickWindow:       time.Second,
		ClickTravel:       6,
		MaxTextureSize:    2048,
		SnapshotSize:      [2]int{1920, 1080},
	}
}

// LoadConfig decodes the YAML file at path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.PointSize <= 0 || c.LineWidth <= 0 {
		errs = append(errs, errors.New("pointSize and lineWidth must be positive"))
	}
	if c.ClickWindow <= 0 {
		errs = append(errs, errors.New("clickWindow must be positive"))
	}
	if c.SnapshotSize[0] <= 0 || c.SnapshotSize[1] <= 0 {
		errs = append(errs, fmt.Errorf("snapshot size %v", c.SnapshotSize))
	}
	if _, err := c.WorldColors(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WorldColors applies the configured overrides to the default palette.
func (c Config) WorldColors() (world.Colors, error) {
	colors := world.DefaultColors()
	slots := map[string]*[4]float32{
		"mesh":             &colors.Mesh,
		"pointCloud":       &colors.PointCloud,
		"skeleton":         &colors.Skeleton,
		"angles":           &colors.Angles,
		"anglesSelected":   &colors.AnglesSelected,
		"anglesHovered":    &colors.AnglesHovered,
		"workspace":        &colors.Workspace,
		"camera":           &colors.Camera,
		"cameraHovered":    &colors.CameraHovered,
		"cameraSelected":   &colors.CameraSelected,
		"pointHighlighted": &colors.PointHighlighted,
		"selectionSphere":  &colors.SelectionSphere,
		"ruler":            &colors.Ruler,
	}
	for name, v := range c.Colors {
		slot, ok := slots[name]
		if !ok {
			return colors, fmt.Errorf("unknown colour %q", name)
		}
		*slot = v
	}
	return colors, nil
}

// WorldOptions maps the config onto world construction options.
func (c Config) WorldOptions() world.Options {
	colors, _ := c.WorldColors()
	return world.Options{
		Width:             c.Window.Width,
		Height:            c.Window.Height,
		Background:        c.Background,
		OverlayBackground: c.OverlayBackground,
		Colors:            colors,
		PointSize:         c.PointSize,
		LineWidth:         c.LineWidth,
		MarkerSize:        c.MarkerSize,
		GridDivisions:     c.GridDivisions,
		ProximityRadius:   c.ProximityRadius,
	}
}
