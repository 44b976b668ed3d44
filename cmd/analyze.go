package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/sketchguess/internal/analysis"
	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
	"github.com/lehigh-university-libraries/sketchguess/internal/sketchfile"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var scale float64
	var background string
	var settings analysis.Settings

	cmd := &cobra.Command{
		Use:   "analyze <sketch.json|sketch.yaml|image.png>",
		Short: "Ask the vision model what a sketch shows",
		Example: `  sketchguess analyze cat.yaml
  sketchguess analyze drawing.png --provider gemini`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := loadImage(args[0], scale, background)
			if err != nil {
				return err
			}
			analyzer, err := analysis.Build(settings)
			if err != nil {
				return err
			}

			task, err := analysis.NewSlot().Start(cmd.Context(), analyzer, image)
			if err != nil {
				return err
			}
			outcome, err := task.Wait(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(outcome.Text))
			if outcome.Failed {
				if outcome.Err != nil {
					return fmt.Errorf("analysis failed: %w", outcome.Err)
				}
				return errors.New("analysis failed")
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&scale, "scale", 2, "Pixel density used when rendering a sketch file")
	cmd.Flags().StringVar(&background, "background", "#ffffff", "Background color used when rendering a sketch file (empty for transparent)")
	cmd.Flags().StringVar(&settings.Provider, "provider", "", "Vision provider (ollama, openai or gemini)")
	cmd.Flags().StringVar(&settings.Model, "model", "", "Model name (defaults to the provider's default)")
	cmd.Flags().DurationVar(&settings.Timeout, "timeout", 2*time.Minute, "Request timeout")
	cmd.Flags().IntVar(&settings.MaxSide, "max-side", 0, "Downscale images so neither side exceeds this many pixels (0 disables)")

	return cmd
}

// loadImage returns PNG bytes for a PNG file or a rendered sketch document.
func loadImage(path string, scale float64, background string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return data, nil
	}

	doc, err := sketchfile.Load(path)
	if err != nil {
		return nil, err
	}
	var bg color.Color
	if background != "" {
		c, err := raster.ParseHexColor(background)
		if err != nil {
			return nil, fmt.Errorf("invalid --background: %w", err)
		}
		bg = c
	}
	state := doc.Session().Snapshot()
	return raster.ExportPNG(state.Strokes, raster.Options{Width: state.Width, Height: state.Height, Scale: scale, Background: bg})
}
