package canvas

import (
	"errors"
	"fmt"
	"strings"
)

// Tool selects how a stroke is composited.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

const (
	MinBrushSize = 1
	MaxBrushSize = 50

	DefaultBrushSize = 5
	DefaultColor     = "#000000"
)

var (
	ErrInvalidTool  = errors.New("invalid tool")
	ErrInvalidColor = errors.New("invalid color")
)

// ParseTool accepts "pen" or "eraser" (case-insensitive). "erase" is
// accepted as an alias.
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pen", "draw":
		return ToolPen, nil
	case "eraser", "erase":
		return ToolEraser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTool, s)
	}
}

// Point is a position in on-screen canvas coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Stroke is one continuous gesture. Size and Color are captured when the
// stroke begins and never change afterwards. Color is ignored for erasers.
type Stroke struct {
	ID     string  `json:"id" yaml:"id,omitempty"`
	Tool   Tool    `json:"tool" yaml:"tool"`
	Size   int     `json:"size" yaml:"size"`
	Color  string  `json:"color" yaml:"color"`
	Points []Point `json:"points" yaml:"points"`
}

// Erases reports whether the stroke removes content instead of painting it.
func (s Stroke) Erases() bool {
	return s.Tool == ToolEraser
}

func (s Stroke) clone() Stroke {
	c := s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	return c
}

// ClampBrushSize forces n into [MinBrushSize, MaxBrushSize].
func ClampBrushSize(n int) int {
	if n < MinBrushSize {
		return MinBrushSize
	}
	if n > MaxBrushSize {
		return MaxBrushSize
	}
	return n
}

// NormalizeColor validates a CSS hex color and returns it as lower-case
// #rrggbb. Short #rgb forms are expanded.
func NormalizeColor(c string) (string, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	if !strings.HasPrefix(c, "#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, c)
	}
	hex := c[1:]
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidColor, c)
		}
	}
	switch len(hex) {
	case 6:
		return c, nil
	case 3:
		return "#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, c)
	}
}
