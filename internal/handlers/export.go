package handlers

import (
	"bytes"
	"image/color"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/sketchguess/internal/models"
	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
	"github.com/lehigh-university-libraries/sketchguess/internal/sketchfile"
)

// handleStrokes exports (GET) or replaces (PUT) the board's strokes as a
// sketch document. ?format=yaml selects YAML, JSON is the default.
func (h *Handler) handleStrokes(w http.ResponseWriter, r *http.Request, board *models.Board) {
	format := sketchfile.FormatJSON
	if f := strings.ToLower(r.URL.Query().Get("format")); f == "yaml" || f == "yml" || strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = sketchfile.FormatYAML
	}

	switch r.Method {
	case "GET":
		var buf bytes.Buffer
		if err := sketchfile.Encode(&buf, sketchfile.FromState(board.Canvas.Snapshot()), format); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if format == sketchfile.FormatYAML {
			w.Header().Set("Content-Type", "application/yaml")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		w.Write(buf.Bytes()) //nolint:errcheck
	case "PUT":
		doc, err := sketchfile.Decode(http.MaxBytesReader(w, r.Body, 16<<20), format)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if doc.Width > 0 || doc.Height > 0 {
			board.Canvas.Resize(doc.Width, doc.Height)
		}
		board.Canvas.Restore(doc.Strokes)
		slog.Info("Board strokes replaced", "board_id", board.ID, "strokes", board.Canvas.Len())
		h.writeJSON(w, board.View())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// exportParams reads ?scale= and ?background= from the query.
func exportParams(r *http.Request) (float64, color.Color, error) {
	scale := raster.DefaultScale
	if s := r.URL.Query().Get("scale"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, nil, err
		}
		scale = v
	}
	var background color.Color
	if bg := r.URL.Query().Get("background"); bg != "" {
		c, err := raster.ParseHexColor(bg)
		if err != nil {
			return 0, nil, err
		}
		background = c
	}
	return scale, background, nil
}

func (h *Handler) handleExportPNG(w http.ResponseWriter, r *http.Request, board *models.Board) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scale, background, err := exportParams(r)
	if err != nil {
		h.writeError(w, "Invalid export parameters: "+err.Error(), http.StatusBadRequest)
		return
	}
	data, _, err := snapshot(board, scale, background)
	if err != nil {
		h.writeError(w, "Failed to render canvas: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data) //nolint:errcheck
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request, board *models.Board) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scale, background, err := exportParams(r)
	if err != nil {
		h.writeError(w, "Invalid export parameters: "+err.Error(), http.StatusBadRequest)
		return
	}
	if background == nil {
		background = color.White
	}
	data, opts, err := snapshot(board, scale, background)
	if err != nil {
		h.writeError(w, "Failed to render canvas: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := raster.ExportPDF(&buf, data, opts.Width, opts.Height); err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="sketch-`+board.ID+`.pdf"`)
	w.Write(buf.Bytes()) //nolint:errcheck
}
