package evalcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/sketchguess/internal/eval/results"
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report <results.yaml>",
		Short: "Print a saved evaluation as text, JSON or CSV",
		Example: `  sketchguess eval report evals/gemma3_27b-2025-01-02_03-04-05.yaml
  sketchguess eval report evals/gemma3_27b-2025-01-02_03-04-05.yaml --format csv > results.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(cmd.OutOrStdout(), args[0], format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json or csv)")
	return cmd
}

func executeReport(w io.Writer, path, format string) error {
	spec, err := results.LoadYAML(path)
	if err != nil {
		return err
	}

	switch format {
	case "text":
		return printTextReport(w, spec)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	case "csv":
		return printCSVReport(w, spec)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextReport(w io.Writer, spec *results.EvalSpec) error {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Sketch Recognition Evaluation Report")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Provider: %s\n", spec.Config.Provider)
	fmt.Fprintf(w, "Model:    %s\n", spec.Config.Model)
	fmt.Fprintf(w, "Dataset:  %s\n", spec.Config.DatasetPath)
	fmt.Fprintf(w, "Run:      %s\n", spec.Config.Timestamp)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Accuracy: %.2f%% (%d/%d, %d failed)\n",
		spec.Summary.Accuracy*100, spec.Summary.Correct, spec.Summary.Total, spec.Summary.Failed)

	methods := make(map[string]int)
	for _, r := range spec.Results {
		if r.Error != "" {
			methods["error"]++
			continue
		}
		methods[r.Method]++
	}
	fmt.Fprintln(w, "\nMatch methods:")
	for _, m := range sortedMethods(methods) {
		fmt.Fprintf(w, "  %-16s %d\n", m, methods[m])
	}

	fmt.Fprintln(w, "\nMisses:")
	for _, r := range spec.Results {
		if r.Correct {
			continue
		}
		answer := r.ProviderResponse
		if r.Error != "" {
			answer = "ERROR: " + r.Error
		}
		fmt.Fprintf(w, "  %-20s %-12s -> %s\n", truncate(r.Identifier, 20), r.Label, truncate(strings.TrimSpace(answer), 60))
	}
	fmt.Fprintln(w, "========================================")
	return nil
}

func printCSVReport(w io.Writer, spec *results.EvalSpec) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"identifier", "label", "response", "method", "score", "correct", "duration_ms", "error"}); err != nil {
		return err
	}
	for _, r := range spec.Results {
		row := []string{
			r.Identifier,
			r.Label,
			strings.TrimSpace(r.ProviderResponse),
			r.Method,
			strconv.FormatFloat(r.Score, 'f', 3, 64),
			strconv.FormatBool(r.Correct),
			strconv.FormatInt(r.DurationMS, 10),
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
