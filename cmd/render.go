package cmd

import (
	"bytes"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
	"github.com/lehigh-university-libraries/sketchguess/internal/sketchfile"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	var output string
	var scale float64
	var background string

	cmd := &cobra.Command{
		Use:   "render <sketch.json|sketch.yaml>",
		Short: "Render a saved sketch to PNG or PDF",
		Example: `  sketchguess render cat.yaml -o cat.png --scale 2
  sketchguess render cat.json -o cat.pdf --background "#ffffff"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := sketchfile.Load(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".png"
			}
			data, err := renderDocument(doc, output, scale, background)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			slog.Info("Sketch rendered", "input", args[0], "output", output, "strokes", len(doc.Strokes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.png or .pdf); defaults to the input name with .png")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Pixel density multiplier")
	cmd.Flags().StringVar(&background, "background", "", "Background color, e.g. #ffffff (empty for transparent PNG, white PDF)")

	return cmd
}

// renderDocument renders doc in the format implied by output's extension.
func renderDocument(doc *sketchfile.Document, output string, scale float64, background string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(output))
	if ext != ".png" && ext != ".pdf" {
		return nil, fmt.Errorf("unsupported output format: %s (supported: .png, .pdf)", ext)
	}

	var bg color.Color
	if background != "" {
		c, err := raster.ParseHexColor(background)
		if err != nil {
			return nil, fmt.Errorf("invalid --background: %w", err)
		}
		bg = c
	} else if ext == ".pdf" {
		bg = color.White
	}

	session := doc.Session()
	state := session.Snapshot()
	opts := raster.Options{Width: state.Width, Height: state.Height, Scale: scale, Background: bg}
	data, err := raster.ExportPNG(state.Strokes, opts)
	if err != nil {
		return nil, err
	}
	if ext == ".png" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := raster.ExportPDF(&buf, data, state.Width, state.Height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
