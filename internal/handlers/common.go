package handlers

import (
	"encoding/json"
	"errors"
	"image/color"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/lehigh-university-libraries/sketchguess/internal/analysis"
	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
	"github.com/lehigh-university-libraries/sketchguess/internal/models"
	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
	"github.com/lehigh-university-libraries/sketchguess/internal/storage"
)

// Options configures a Handler
type Options struct {
	Analyzer *analysis.Analyzer
	// ExportScale is the pixel density of snapshots sent for analysis.
	ExportScale float64
	// AnalysisBackground is painted under snapshots sent for analysis.
	// Nil keeps them transparent.
	AnalysisBackground color.Color
}

type Handler struct {
	boardStore *storage.BoardStore
	opts       Options
	upgrader   websocket.Upgrader
}

func New(opts Options) *Handler {
	if opts.ExportScale <= 0 {
		opts.ExportScale = 2
	}
	return &Handler{
		boardStore: storage.New(),
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeCanvasError maps canvas validation errors to 400.
func (h *Handler) writeCanvasError(w http.ResponseWriter, err error) {
	if errors.Is(err, canvas.ErrInvalidTool) || errors.Is(err, canvas.ErrInvalidColor) {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeError(w, err.Error(), http.StatusInternalServerError)
}

// Board helpers
func (h *Handler) getBoardOrError(w http.ResponseWriter, boardID string) (*models.Board, bool) {
	board, exists := h.boardStore.Get(boardID)
	if !exists {
		h.writeError(w, "Board not found", http.StatusNotFound)
		return nil, false
	}
	return board, true
}

const (
	pointerDown = "down"
	pointerMove = "move"
	pointerUp   = "up"
)

// pointerKind maps browser and shorthand event names to down, move or up.
func pointerKind(eventType string) (string, error) {
	switch eventType {
	case "down", "pointerdown", "touchstart":
		return pointerDown, nil
	case "move", "pointermove", "touchmove":
		return pointerMove, nil
	case "up", "pointerup", "touchend", "cancel", "leave":
		return pointerUp, nil
	default:
		return "", errors.New("unknown pointer event type: " + eventType)
	}
}

// applyPointer feeds one pointer event into the board's canvas.
func applyPointer(board *models.Board, ev models.PointerEvent) (bool, error) {
	kind, err := pointerKind(ev.Type)
	if err != nil {
		return false, err
	}
	p := canvas.Point{X: ev.X, Y: ev.Y}
	switch kind {
	case pointerDown:
		return board.Canvas.BeginStroke(p), nil
	case pointerMove:
		return board.Canvas.ExtendStroke(p), nil
	default:
		return board.Canvas.EndStroke(), nil
	}
}

// applySettings updates tool, size, color and canvas size. It returns the
// first validation error; fields before it are already applied.
func applySettings(board *models.Board, req models.SettingsRequest) error {
	if req.Tool != nil {
		if err := board.Canvas.SetTool(canvas.Tool(*req.Tool)); err != nil {
			return err
		}
	}
	if req.Size != nil {
		board.Canvas.SetBrushSize(*req.Size)
	}
	if req.Color != nil {
		if err := board.Canvas.SetColor(*req.Color); err != nil {
			return err
		}
	}
	if req.Width != nil || req.Height != nil {
		state := board.Canvas.Snapshot()
		width, height := state.Width, state.Height
		if req.Width != nil {
			width = *req.Width
		}
		if req.Height != nil {
			height = *req.Height
		}
		board.Canvas.Resize(width, height)
	}
	return nil
}

// snapshot renders the board's canvas as PNG.
func snapshot(board *models.Board, scale float64, background color.Color) ([]byte, raster.Options, error) {
	state := board.Canvas.Snapshot()
	opts := raster.Options{
		Width:      state.Width,
		Height:     state.Height,
		Scale:      scale,
		Background: background,
	}
	data, err := raster.ExportPNG(state.Strokes, opts)
	return data, opts, err
}
