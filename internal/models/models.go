package models

import (
	"sync"
	"time"

	"github.com/lehigh-university-libraries/sketchguess/internal/analysis"
	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
)

// Board is one canvas view: its drawing session and its analysis result.
type Board struct {
	ID        string
	CreatedAt time.Time
	Canvas    *canvas.Session
	Analysis  *analysis.Slot

	mu          sync.Mutex
	subscribers map[chan struct{}]struct{}
}

// NewBoard creates a board with an empty canvas of the given on-screen size.
func NewBoard(id string, width, height int) *Board {
	b := &Board{
		ID:          id,
		CreatedAt:   time.Now(),
		Canvas:      canvas.NewSession(),
		Analysis:    analysis.NewSlot(),
		subscribers: make(map[chan struct{}]struct{}),
	}
	b.Canvas.Resize(width, height)
	b.Canvas.OnChange(b.notify)
	b.Analysis.OnChange(b.notify)
	return b
}

// Subscribe returns a channel that receives a signal after canvas or
// analysis changes.
// Signals coalesce while the receiver is busy. Call the returned function to
// unsubscribe.
func (b *Board) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
	}
}

func (b *Board) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close detaches all subscribers.
func (b *Board) Close() {
	b.Canvas.OnChange(nil)
	b.Analysis.OnChange(nil)
	b.mu.Lock()
	b.subscribers = make(map[chan struct{}]struct{})
	b.mu.Unlock()
}

// BoardView is the JSON representation of a board
type BoardView struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Canvas    canvas.State    `json:"canvas"`
	Analysis  analysis.Result `json:"analysis"`
}

// View snapshots the board.
func (b *Board) View() BoardView {
	return BoardView{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		Canvas:    b.Canvas.Snapshot(),
		Analysis:  b.Analysis.Result(),
	}
}

// BoardSummary is the list representation of a board
type BoardSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Strokes   int       `json:"strokes"`
	Analyzing bool      `json:"analyzing"`
}

// Summary returns the list representation.
func (b *Board) Summary() BoardSummary {
	return BoardSummary{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		Strokes:   b.Canvas.Len(),
		Analyzing: b.Analysis.Busy(),
	}
}

// PointerEvent is a pointer (mouse, pen or touch) event in canvas coordinates
type PointerEvent struct {
	Type string  `json:"type"` // "down", "move", "up"
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// SettingsRequest updates the active drawing settings. Nil fields are left
// unchanged.
type SettingsRequest struct {
	Tool   *string `json:"tool,omitempty"`
	Size   *int    `json:"size,omitempty"`
	Color  *string `json:"color,omitempty"`
	Width  *int    `json:"width,omitempty"`
	Height *int    `json:"height,omitempty"`
}

// CreateBoardRequest is the body of a board creation request
type CreateBoardRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AnalysisResponse is returned once an analysis resolves
type AnalysisResponse struct {
	Outcome analysis.Outcome `json:"outcome"`
	Result  analysis.Result  `json:"result"`
}

// StreamMessage is exchanged over the board WebSocket. Clients send pointer
// events ("down", "move", "up"), "clear" and "settings"; the server sends
// "changed" (with the stroke count and analysis state) and "error".
type StreamMessage struct {
	Type     string           `json:"type"`
	X        float64          `json:"x,omitempty"`
	Y        float64          `json:"y,omitempty"`
	Settings *SettingsRequest `json:"settings,omitempty"`
	Strokes  int              `json:"strokes,omitempty"`
	Drawing  bool             `json:"drawing,omitempty"`
	Analysis *analysis.Result `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}
