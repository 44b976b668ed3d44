package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/sketchguess/internal/analysis"
	"github.com/lehigh-university-libraries/sketchguess/internal/models"
)

// handleAnalyze snapshots the canvas and asks the configured model what it
// shows. The response is sent once the analysis resolves. If the client goes
// away first the analysis still completes and lands in the board's result.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request, board *models.Board) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.opts.Analyzer == nil {
		h.writeError(w, "Analysis is not configured", http.StatusServiceUnavailable)
		return
	}
	if board.Analysis.Busy() {
		h.writeError(w, analysis.ErrBusy.Error(), http.StatusConflict)
		return
	}

	data, _, err := snapshot(board, h.opts.ExportScale, h.opts.AnalysisBackground)
	if err != nil {
		h.writeError(w, "Failed to render canvas: "+err.Error(), http.StatusInternalServerError)
		return
	}

	task, err := board.Analysis.Start(r.Context(), h.opts.Analyzer, data)
	if errors.Is(err, analysis.ErrBusy) {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("Analysis started", "board_id", board.ID, "provider", h.opts.Analyzer.ProviderName(), "bytes", len(data))

	outcome, err := task.Wait(r.Context())
	if err != nil {
		slog.Warn("Client left before analysis finished", "board_id", board.ID, "err", err)
		return
	}
	h.writeJSON(w, models.AnalysisResponse{
		Outcome: outcome,
		Result:  board.Analysis.Result(),
	})
}

// handleAnalysis returns (GET) or dismisses (DELETE) the current result.
func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request, board *models.Board) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, board.Analysis.Result())
	case "DELETE":
		board.Analysis.Dismiss()
		h.writeJSON(w, board.Analysis.Result())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
