package evalcmd

import (
	"bufio"
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/sketchguess/internal/eval/dataset"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var datasetPath string
	var limit int
	var interactive bool
	var renderDir string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect dataset records",
		Long: `Inspect records from a parquet or jsonl sketch dataset.

Prints each record's label, aliases, canvas size and stroke statistics.
With --render the sketches are also written as PNG files so they can be
checked by eye before running an evaluation.`,
		Example: `  # Inspect first 5 records interactively
  sketchguess eval inspect --dataset ./sketches.parquet --limit 5 --interactive

  # Render every record to ./preview
  sketchguess eval inspect --dataset ./sketches.jsonl --limit 0 --render ./preview`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if datasetPath == "" {
				return fmt.Errorf("--dataset is required")
			}
			return executeInspect(cmd.Context(), cmd.OutOrStdout(), os.Stdin, datasetPath, limit, interactive, renderDir)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path or URL of a parquet or jsonl dataset (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of records to inspect (0 for all)")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Pause after each record (press Enter to continue)")
	cmd.Flags().StringVar(&renderDir, "render", "", "Write each sketch as <id>.png into this directory")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func executeInspect(ctx context.Context, w io.Writer, in io.Reader, datasetPath string, limit int, interactive bool, renderDir string) error {
	loader, err := dataset.Open(datasetPath, dataset.DownloadConfig{Token: os.Getenv("DATASET_TOKEN")})
	if err != nil {
		return err
	}

	var records []dataset.SketchRecord
	if limit > 0 {
		records, err = loader.LoadSample(limit)
	} else {
		records, err = loader.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	if renderDir != "" {
		if err := os.MkdirAll(renderDir, 0755); err != nil {
			return fmt.Errorf("failed to create render directory: %w", err)
		}
	}

	fmt.Fprintf(w, "Loaded %d records from %s\n", len(records), datasetPath)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)

	reader := bufio.NewReader(in)

	for i, record := range records {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "\nInspection interrupted.")
			return nil
		default:
		}

		fmt.Fprintf(w, "RECORD %d/%d\n", i+1, len(records))
		fmt.Fprintln(w, strings.Repeat("-", 80))
		fmt.Fprintf(w, "ID:        %s\n", record.ID)
		fmt.Fprintf(w, "Label:     %s\n", record.Label)
		if len(record.Aliases) > 0 {
			fmt.Fprintf(w, "Aliases:   %s\n", strings.Join(record.Aliases, ", "))
		}
		fmt.Fprintf(w, "Canvas:    %dx%d\n", record.Width, record.Height)

		if len(record.Image) > 0 {
			fmt.Fprintf(w, "Image:     %d bytes (pre-rendered)\n", len(record.Image))
		} else if strokes, err := record.StrokeList(); err != nil {
			fmt.Fprintf(w, "Strokes:   invalid (%v)\n", err)
		} else {
			points, erasers := 0, 0
			for _, s := range strokes {
				points += len(s.Points)
				if s.Erases() {
					erasers++
				}
			}
			fmt.Fprintf(w, "Strokes:   %d (%d eraser), %d points\n", len(strokes), erasers, points)
		}

		if renderDir != "" {
			data, err := record.PNG(1, color.White)
			if err != nil {
				fmt.Fprintf(w, "Render:    failed (%v)\n", err)
			} else {
				path := filepath.Join(renderDir, safeName(record.ID)+".png")
				if err := os.WriteFile(path, data, 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(w, "Render:    %s\n", path)
			}
		}
		fmt.Fprintln(w)

		if interactive {
			fmt.Fprint(w, "Press Enter to continue to next record (or Ctrl+C to quit)...")

			inputCh := make(chan struct{})
			go func() {
				_, _ = reader.ReadString('\n')
				close(inputCh)
			}()

			select {
			case <-ctx.Done():
				fmt.Fprintln(w, "\nInspection interrupted.")
				return nil
			case <-inputCh:
				fmt.Fprintln(w)
			}
		}
	}

	return nil
}

func safeName(id string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == '.' {
			return '_'
		}
		return r
	}, id)
	if name == "" {
		return "record"
	}
	return name
}
