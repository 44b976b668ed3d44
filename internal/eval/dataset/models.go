package dataset

import (
	"encoding/json"
	"fmt"
	"image/color"

	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
)

// SketchRecord is one labeled drawing. A record carries either strokes
// (JSON-encoded, rendered on demand) or a pre-rendered PNG.
type SketchRecord struct {
	ID      string   `json:"id" parquet:"id"`
	Label   string   `json:"label" parquet:"label"`
	Aliases []string `json:"aliases,omitempty" parquet:"aliases,list"`

	// Canvas size in on-screen pixels. Zero means the canvas defaults.
	Width  int `json:"width,omitempty" parquet:"width"`
	Height int `json:"height,omitempty" parquet:"height"`

	// Strokes holds a JSON array of canvas strokes.
	Strokes string `json:"strokes,omitempty" parquet:"strokes"`
	Image   []byte `json:"image,omitempty" parquet:"image,optional"`
}

// Answers returns every accepted answer: the label followed by its aliases.
func (r *SketchRecord) Answers() []string {
	answers := make([]string, 0, 1+len(r.Aliases))
	if r.Label != "" {
		answers = append(answers, r.Label)
	}
	for _, a := range r.Aliases {
		if a != "" {
			answers = append(answers, a)
		}
	}
	return answers
}

// StrokeList decodes the record's strokes.
func (r *SketchRecord) StrokeList() ([]canvas.Stroke, error) {
	if r.Strokes == "" {
		return nil, nil
	}
	var strokes []canvas.Stroke
	if err := json.Unmarshal([]byte(r.Strokes), &strokes); err != nil {
		return nil, fmt.Errorf("failed to decode strokes for %s: %w", r.ID, err)
	}
	return strokes, nil
}

// PNG returns the image to analyze. Pre-rendered images are returned as is;
// otherwise the strokes are rendered at scale onto background.
func (r *SketchRecord) PNG(scale float64, background color.Color) ([]byte, error) {
	if len(r.Image) > 0 {
		return r.Image, nil
	}
	strokes, err := r.StrokeList()
	if err != nil {
		return nil, err
	}
	if len(strokes) == 0 {
		return nil, fmt.Errorf("record %s has no strokes or image", r.ID)
	}

	// Restore sanitizes sizes, tools and colors the same way saved sketches are.
	session := canvas.NewSession()
	session.Restore(strokes)
	return raster.ExportPNG(session.Strokes(), raster.Options{
		Width:      r.Width,
		Height:     r.Height,
		Scale:      scale,
		Background: background,
	})
}
