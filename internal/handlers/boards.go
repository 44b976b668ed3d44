package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/sketchguess/internal/models"
)

func (h *Handler) HandleBoards(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		boards := h.boardStore.List()
		summaries := make([]models.BoardSummary, 0, len(boards))
		for _, board := range boards {
			summaries = append(summaries, board.Summary())
		}
		h.writeJSON(w, summaries)
	case "POST":
		var request models.CreateBoardRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		board := h.boardStore.Create(request.Width, request.Height)
		slog.Info("Board created", "board_id", board.ID)
		h.writeJSONStatus(w, http.StatusCreated, board.View())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleBoardDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/boards/")
	boardID, action, _ := strings.Cut(path, "/")

	board, ok := h.getBoardOrError(w, boardID)
	if !ok {
		return
	}

	switch action {
	case "":
		h.handleBoard(w, r, board)
	case "pointer":
		h.handlePointer(w, r, board)
	case "settings":
		h.handleSettings(w, r, board)
	case "clear":
		h.handleClear(w, r, board)
	case "strokes":
		h.handleStrokes(w, r, board)
	case "export.png":
		h.handleExportPNG(w, r, board)
	case "export.pdf":
		h.handleExportPDF(w, r, board)
	case "analyze":
		h.handleAnalyze(w, r, board)
	case "analysis":
		h.handleAnalysis(w, r, board)
	case "ws":
		h.handleStream(w, r, board)
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request, board *models.Board) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, board.View())
	case "DELETE":
		h.boardStore.Delete(board.ID)
		slog.Info("Board deleted", "board_id", board.ID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePointer(w http.ResponseWriter, r *http.Request, board *models.Board) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A batch of events keeps move streams cheap; a single object is accepted too.
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	var events []models.PointerEvent
	if err := json.Unmarshal(body, &events); err != nil {
		var single models.PointerEvent
		if err := json.Unmarshal(body, &single); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		events = []models.PointerEvent{single}
	}

	// Reject the whole batch before touching the canvas.
	for i, ev := range events {
		if _, err := pointerKind(ev.Type); err != nil {
			h.writeError(w, fmt.Sprintf("event %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	applied := 0
	for _, ev := range events {
		ok, err := applyPointer(board, ev)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ok {
			applied++
		}
	}

	state := board.Canvas.Snapshot()
	h.writeJSON(w, map[string]any{
		"applied": applied,
		"strokes": len(state.Strokes),
		"drawing": state.Drawing,
	})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request, board *models.Board) {
	if r.Method != "PUT" && r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var request models.SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := applySettings(board, request); err != nil {
		h.writeCanvasError(w, err)
		return
	}
	h.writeJSON(w, board.View())
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request, board *models.Board) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	board.Canvas.ClearAll()
	slog.Info("Board cleared", "board_id", board.ID)
	h.writeJSON(w, board.View())
}
