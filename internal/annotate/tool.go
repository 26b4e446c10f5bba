package annotate

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// Tool is the active annotation tool.
type Tool string

const (
	ToolPen    Tool = "pen"    // freehand, drawn immediately
	ToolMarker Tool = "marker" // horizontal bar at the starting y
	ToolEraser Tool = "eraser" // clears a square around the pointer
)

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(strings.ToLower(strings.TrimSpace(s))); t {
	case ToolPen, ToolMarker, ToolEraser:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tool %q", s)
	}
}

// Settings is the tool configuration shared by every stroke of a session.
type Settings struct {
	Tool      Tool
	Color     color.NRGBA
	BrushSize float64
}

// DefaultSettings mirrors the viewer's out-of-the-box marker: translucent
// yellow, brush 40.
func DefaultSettings() Settings {
	return Settings{
		Tool:      ToolMarker,
		Color:     color.NRGBA{R: 255, G: 255, B: 0, A: 102},
		BrushSize: 40,
	}
}

// SettingsFrom builds the initial settings from configuration, falling
// back to the defaults for unset fields.
func SettingsFrom(cfg config.AnnotateConfig) (Settings, error) {
	s := DefaultSettings()
	if cfg.Tool != "" {
		t, err := ParseTool(string(cfg.Tool))
		if err != nil {
			return Settings{}, err
		}
		s.Tool = t
	}
	if cfg.Color != "" {
		c, err := ParseColor(cfg.Color)
		if err != nil {
			return Settings{}, err
		}
		s.Color = c
	}
	if cfg.BrushSize > 0 {
		s.BrushSize = float64(cfg.BrushSize)
	}
	return s, nil
}

// PenWidth is the line width of a freehand pen segment.
func (s Settings) PenWidth() float64 { return math.Max(1, s.BrushSize/6) }

// MarkerWidth is the thickness of a marker bar.
func (s Settings) MarkerWidth() float64 { return math.Max(4, s.BrushSize/2) }

// EraserSide is the side length of the square cleared by the eraser.
func (s Settings) EraserSide() float64 { return math.Max(8, s.BrushSize/2) }

// ParseColor accepts #rgb, #rrggbb, #rrggbbaa, rgb(r,g,b) and rgba(r,g,b,a)
// where a is a 0..1 fraction.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHexColor(s[1:])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFuncColor(s[5:len(s)-1], true)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFuncColor(s[4:len(s)-1], false)
	}
	return color.NRGBA{}, fmt.Errorf("unsupported color %q", s)
}

func parseHexColor(h string) (color.NRGBA, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s", h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s: %w", h, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parseFuncColor(body string, withAlpha bool) (color.NRGBA, error) {
	parts := strings.Split(body, ",")
	want := 3
	if withAlpha {
		want = 4
	}
	if len(parts) != want {
		return color.NRGBA{}, fmt.Errorf("expected %d color components, got %d", want, len(parts))
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return color.NRGBA{}, fmt.Errorf("invalid color component %q", parts[i])
		}
		rgb[i] = uint8(n)
	}
	c := color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
	if withAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid alpha %q", parts[3])
		}
		c.A = uint8(math.Round(a * 255))
	}
	return c, nil
}

// FormatColor renders c in the rgba() form understood by ParseColor.
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B,
		strconv.FormatFloat(math.Round(float64(c.A)/255*100)/100, 'f', -1, 64))
}
