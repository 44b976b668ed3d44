package canvas

import (
	"sync"

	"github.com/google/uuid"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600
	MaxDimension  = 4096
)

// State is a point-in-time copy of a Session.
type State struct {
	Tool    Tool     `json:"tool"`
	Size    int      `json:"size"`
	Color   string   `json:"color"`
	Drawing bool     `json:"drawing"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Strokes []Stroke `json:"strokes"`
}

// Session is the drawing state of one canvas view. Strokes are kept in draw
// order. At most one stroke (the last one) is in progress at any time.
//
// All methods are safe for concurrent use; each operation is applied
// atomically and change listeners run after the lock is released.
type Session struct {
	mu       sync.Mutex
	strokes  []Stroke
	tool     Tool
	size     int
	color    string
	drawing  bool
	width    int
	height   int
	onChange func()
}

// NewSession returns an empty session with the default pen settings.
func NewSession() *Session {
	return &Session{
		strokes: make([]Stroke, 0),
		tool:    ToolPen,
		size:    DefaultBrushSize,
		color:   DefaultColor,
		width:   DefaultWidth,
		height:  DefaultHeight,
	}
}

// OnChange registers fn to be called after every mutation. Passing nil
// removes the listener.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// BeginStroke starts a new stroke at p with the active tool, size and color.
// It returns false and does nothing if a stroke is already in progress.
func (s *Session) BeginStroke(p Point) bool {
	_, started := s.BeginStrokeID(p)
	return started
}

// BeginStrokeID is BeginStroke that also returns the new stroke's ID.
func (s *Session) BeginStrokeID(p Point) (string, bool) {
	s.mu.Lock()
	started := s.beginLocked(p)
	id := ""
	if started {
		id = s.strokes[len(s.strokes)-1].ID
	}
	s.mu.Unlock()

	if started {
		s.changed()
	}
	return id, started
}

func (s *Session) beginLocked(p Point) bool {
	if s.drawing {
		return false
	}
	s.strokes = append(s.strokes, Stroke{
		ID:     uuid.NewString(),
		Tool:   s.tool,
		Size:   s.size,
		Color:  s.color,
		Points: []Point{p},
	})
	s.drawing = true
	return true
}

// BeginStrokeWith applies tool, size and color as the active settings and
// then begins a stroke at p. Settings are left untouched when a stroke is
// already in progress.
func (s *Session) BeginStrokeWith(p Point, tool Tool, size int, color string) (bool, error) {
	parsed, err := ParseTool(string(tool))
	if err != nil {
		return false, err
	}
	normalized, err := NormalizeColor(color)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	started := false
	if !s.drawing {
		s.tool = parsed
		s.size = ClampBrushSize(size)
		s.color = normalized
		started = s.beginLocked(p)
	}
	s.mu.Unlock()

	if started {
		s.changed()
	}
	return started, nil
}

// ExtendStroke appends p to the in-progress stroke. Points are kept in call
// order, duplicates included. It returns false when no stroke is in progress.
func (s *Session) ExtendStroke(p Point) bool {
	s.mu.Lock()
	if !s.drawing || len(s.strokes) == 0 {
		s.mu.Unlock()
		return false
	}
	last := &s.strokes[len(s.strokes)-1]
	last.Points = append(last.Points, p)
	s.mu.Unlock()

	s.changed()
	return true
}

// EndStroke freezes the in-progress stroke.
func (s *Session) EndStroke() bool {
	s.mu.Lock()
	if !s.drawing {
		s.mu.Unlock()
		return false
	}
	s.drawing = false
	s.mu.Unlock()

	s.changed()
	return true
}

// EndStrokeID ends the stroke in progress only if its ID is id.
func (s *Session) EndStrokeID(id string) bool {
	s.mu.Lock()
	if !s.drawing || len(s.strokes) == 0 || s.strokes[len(s.strokes)-1].ID != id {
		s.mu.Unlock()
		return false
	}
	s.drawing = false
	s.mu.Unlock()

	s.changed()
	return true
}

// ClearAll discards every stroke, including one in progress.
func (s *Session) ClearAll() {
	s.mu.Lock()
	s.strokes = make([]Stroke, 0)
	s.drawing = false
	s.mu.Unlock()

	s.changed()
}

// SetTool selects the tool used by the next stroke.
func (s *Session) SetTool(t Tool) error {
	parsed, err := ParseTool(string(t))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tool = parsed
	s.mu.Unlock()

	s.changed()
	return nil
}

// SetBrushSize clamps n to the allowed range, stores it for the next stroke
// and returns the stored value.
func (s *Session) SetBrushSize(n int) int {
	n = ClampBrushSize(n)
	s.mu.Lock()
	s.size = n
	s.mu.Unlock()

	s.changed()
	return n
}

// SetColor sets the pen color for the next stroke.
func (s *Session) SetColor(c string) error {
	normalized, err := NormalizeColor(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.color = normalized
	s.mu.Unlock()

	s.changed()
	return nil
}

// Resize records the on-screen size of the canvas, which bounds exports.
func (s *Session) Resize(width, height int) {
	s.mu.Lock()
	s.width = clampDimension(width, DefaultWidth)
	s.height = clampDimension(height, DefaultHeight)
	s.mu.Unlock()

	s.changed()
}

func clampDimension(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	if v > MaxDimension {
		return MaxDimension
	}
	return v
}

// Restore replaces all strokes, e.g. with a document loaded from disk.
// Sizes are clamped, bad tools and colors fall back to the defaults and
// empty strokes are dropped. Any stroke in progress ends.
func (s *Session) Restore(strokes []Stroke) {
	restored := make([]Stroke, 0, len(strokes))
	for _, st := range strokes {
		if len(st.Points) == 0 {
			continue
		}
		st = st.clone()
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		st.Size = ClampBrushSize(st.Size)
		if tool, err := ParseTool(string(st.Tool)); err == nil {
			st.Tool = tool
		} else {
			st.Tool = ToolPen
		}
		if c, err := NormalizeColor(st.Color); err == nil {
			st.Color = c
		} else {
			st.Color = DefaultColor
		}
		restored = append(restored, st)
	}

	s.mu.Lock()
	s.strokes = restored
	s.drawing = false
	s.mu.Unlock()

	s.changed()
}

// Strokes returns a deep copy of the strokes in draw order.
func (s *Session) Strokes() []Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyStrokes()
}

func (s *Session) copyStrokes() []Stroke {
	out := make([]Stroke, len(s.strokes))
	for i, st := range s.strokes {
		out[i] = st.clone()
	}
	return out
}

// Snapshot returns the settings and strokes as one consistent copy.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Tool:    s.tool,
		Size:    s.size,
		Color:   s.color,
		Drawing: s.drawing,
		Width:   s.width,
		Height:  s.height,
		Strokes: s.copyStrokes(),
	}
}

// Len returns the number of strokes.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.strokes)
}

// Drawing reports whether a stroke is in progress.
func (s *Session) Drawing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawing
}
