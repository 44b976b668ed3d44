package evalcmd

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/sketchguess/internal/analysis"
	"github.com/lehigh-university-libraries/sketchguess/internal/eval/dataset"
	"github.com/lehigh-university-libraries/sketchguess/internal/eval/metrics"
	"github.com/lehigh-university-libraries/sketchguess/internal/eval/results"
	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
	"github.com/spf13/cobra"
)

// RunOptions configures an evaluation run
type RunOptions struct {
	DatasetPath string
	Sample      int
	Concurrency int
	Scale       float64
	Background  string
	OutputDir   string
	OutputJSON  string
	Analysis    analysis.Settings
}

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	opts := RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate recognition accuracy against a labeled sketch dataset",
		Long: `Render every sketch in a labeled dataset, ask the configured vision model
what it shows and compare the answer with the label.

Answers match when they equal the label or one of its aliases after
lower-casing and removing whitespace and punctuation. Results are written
to evals/<model>-<timestamp>.yaml.`,
		Example: `  # Evaluate 20 sketches with the local Ollama model
  sketchguess eval run --dataset ./sketches.parquet --sample 20

  # Evaluate a remote JSONL dataset with OpenAI, 8 requests at a time
  sketchguess eval run --dataset https://example.org/sketches.jsonl --provider openai --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.DatasetPath == "" {
				return fmt.Errorf("--dataset is required")
			}
			if opts.Concurrency < 1 {
				opts.Concurrency = 1
			}
			return executeRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.DatasetPath, "dataset", "", "Path or URL of a parquet or jsonl dataset (required)")
	cmd.Flags().IntVar(&opts.Sample, "sample", 0, "Number of records to evaluate (0 for all)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Number of concurrent analysis requests")
	cmd.Flags().Float64Var(&opts.Scale, "scale", 2, "Pixel density of rendered sketches")
	cmd.Flags().StringVar(&opts.Background, "background", "#ffffff", "Background color for rendered sketches (empty for transparent)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "evals", "Directory for the YAML results")
	cmd.Flags().StringVar(&opts.OutputJSON, "output-json", "", "Also write aggregated results as JSON to this path")
	cmd.Flags().StringVar(&opts.Analysis.Provider, "provider", "", "Vision provider (ollama, openai or gemini)")
	cmd.Flags().StringVar(&opts.Analysis.Model, "model", "", "Model name (defaults to the provider's default)")
	cmd.Flags().DurationVar(&opts.Analysis.Timeout, "timeout", 2*time.Minute, "Per-request timeout")
	cmd.Flags().IntVar(&opts.Analysis.MaxSide, "max-side", 0, "Downscale images so neither side exceeds this many pixels (0 disables)")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func executeRun(ctx context.Context, opts RunOptions) error {
	slog.Info("Starting evaluation run", "dataset", opts.DatasetPath, "provider", opts.Analysis.Provider, "model", opts.Analysis.Model)

	var background color.Color
	if opts.Background != "" {
		c, err := raster.ParseHexColor(opts.Background)
		if err != nil {
			return fmt.Errorf("invalid --background: %w", err)
		}
		background = c
	}

	analyzer, err := analysis.Build(opts.Analysis)
	if err != nil {
		return err
	}

	loader, err := dataset.Open(opts.DatasetPath, dataset.DownloadConfig{Token: os.Getenv("DATASET_TOKEN")})
	if err != nil {
		return err
	}
	var records []dataset.SketchRecord
	if opts.Sample > 0 {
		records, err = loader.LoadSample(opts.Sample)
	} else {
		records, err = loader.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("Dataset loaded", "records", len(records))

	evalResults := evaluateRecords(ctx, analyzer, records, opts.Concurrency, opts.Scale, background)

	agg := metrics.AggregateEvaluationResults(evalResults, analyzer.ProviderName(), analyzer.Model())
	agg.PrintSummary(os.Stdout)

	spec := results.NewSpec(results.EvalConfig{
		Provider:    analyzer.ProviderName(),
		Model:       analyzer.Model(),
		Prompt:      analysis.Prompt,
		DatasetPath: opts.DatasetPath,
		SampleSize:  len(records),
		Scale:       opts.Scale,
	}, agg)
	path, err := results.SaveToYAML(opts.OutputDir, spec)
	if err != nil {
		return err
	}
	fmt.Printf("\nResults saved to: %s\n", path)

	if opts.OutputJSON != "" {
		if err := agg.SaveToJSON(opts.OutputJSON); err != nil {
			return err
		}
		fmt.Printf("JSON results saved to: %s\n", opts.OutputJSON)
	}
	return nil
}

// evaluateRecords analyzes records with at most concurrency requests in
// flight. Results keep the dataset order.
func evaluateRecords(ctx context.Context, analyzer *analysis.Analyzer, records []dataset.SketchRecord, concurrency int, scale float64, background color.Color) []metrics.EvaluationResult {
	out := make([]metrics.EvaluationResult, len(records))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, max(1, concurrency))

	for i, record := range records {
		wg.Add(1)
		go func(idx int, record dataset.SketchRecord) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			slog.Info("Processing record", "id", record.ID, "progress", fmt.Sprintf("%d/%d", idx+1, len(records)))
			out[idx] = evaluateRecord(ctx, analyzer, record, scale, background)
		}(i, record)
	}
	wg.Wait()

	return out
}

func evaluateRecord(ctx context.Context, analyzer *analysis.Analyzer, record dataset.SketchRecord, scale float64, background color.Color) metrics.EvaluationResult {
	result := metrics.EvaluationResult{
		ID:    record.ID,
		Label: record.Label,
	}

	image, err := record.PNG(scale, background)
	if err != nil {
		result.Error = fmt.Sprintf("failed to render sketch: %v", err)
		return result
	}

	// Each record gets its own slot, like a board in the web UI.
	task, err := analysis.NewSlot().Start(ctx, analyzer, image)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	outcome, err := task.Wait(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("evaluation interrupted: %v", err)
		return result
	}

	result.ProcessingTime = outcome.Duration
	if outcome.Failed {
		result.Error = fmt.Sprintf("analysis failed: %v", outcome.Err)
		return result
	}
	result.Answer = outcome.Text
	result.Match = metrics.CompareAnswer(outcome.Text, record.Answers())
	return result
}

// sortedMethods is shared by the text reports.
func sortedMethods(methods map[string]int) []string {
	names := make([]string, 0, len(methods))
	for m := range methods {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}
