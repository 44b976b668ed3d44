package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// EvaluationResult represents the result for a single sketch
type EvaluationResult struct {
	ID             string        `json:"id"`
	Label          string        `json:"label"`
	Answer         string        `json:"answer"`
	Match          AnswerMatch   `json:"match"`
	ProcessingTime time.Duration `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

// AggregateResults represents aggregated evaluation metrics
type AggregateResults struct {
	TotalRecords int `json:"total_records"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	CorrectCount int `json:"correct_count"`

	// Accuracy counts failed requests as wrong answers.
	Accuracy     float64        `json:"accuracy"`
	AverageScore float64        `json:"average_score"`
	Methods      map[string]int `json:"methods"`

	AverageProcessingTime time.Duration `json:"average_processing_time"`
	MedianProcessingTime  time.Duration `json:"median_processing_time"`
	TotalProcessingTime   time.Duration `json:"total_processing_time"`

	Results []EvaluationResult `json:"results"`

	EvaluationDate time.Time `json:"evaluation_date"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
}

// AggregateEvaluationResults aggregates multiple evaluation results
func AggregateEvaluationResults(results []EvaluationResult, provider, model string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Methods:        make(map[string]int),
		Results:        results,
		EvaluationDate: time.Now(),
		Provider:       provider,
		Model:          model,
	}

	var scores []float64
	durations := make([]time.Duration, 0, len(results))
	for _, r := range results {
		agg.TotalProcessingTime += r.ProcessingTime
		durations = append(durations, r.ProcessingTime)

		if r.Error != "" {
			agg.FailureCount++
			agg.Methods["error"]++
			continue
		}
		agg.SuccessCount++
		agg.Methods[r.Match.Method]++
		scores = append(scores, r.Match.Score)
		if r.Match.Correct() {
			agg.CorrectCount++
		}
	}

	if agg.TotalRecords > 0 {
		agg.Accuracy = float64(agg.CorrectCount) / float64(agg.TotalRecords)
		agg.AverageProcessingTime = agg.TotalProcessingTime / time.Duration(agg.TotalRecords)
		agg.MedianProcessingTime = medianDuration(durations)
	}
	agg.AverageScore = calculateAverage(scores)

	return agg
}

// calculateAverage calculates the average of a slice of scores
func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range scores {
		sum += score
	}

	return sum / float64(len(scores))
}

func medianDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// PrintSummary writes a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "SKETCH RECOGNITION EVALUATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Provider: %s\n", a.Provider)
	fmt.Fprintf(w, "Model: %s\n", a.Model)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PROCESSING STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total Records: %d\n", a.TotalRecords)
	fmt.Fprintf(w, "Successful: %d (%.1f%%)\n", a.SuccessCount, percent(a.SuccessCount, a.TotalRecords))
	fmt.Fprintf(w, "Failed: %d (%.1f%%)\n", a.FailureCount, percent(a.FailureCount, a.TotalRecords))
	fmt.Fprintf(w, "Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Fprintf(w, "Median Processing Time: %s\n", a.MedianProcessingTime)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MATCH METHODS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	methods := make([]string, 0, len(a.Methods))
	for m := range a.Methods {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		fmt.Fprintf(w, "  %-16s %d\n", m, a.Methods[m])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OVERALL SCORE")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Accuracy: %.2f%% (%d/%d)\n", a.Accuracy*100, a.CorrectCount, a.TotalRecords)
	fmt.Fprintf(w, "Average Match Score: %.3f\n", a.AverageScore)
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// SaveToJSON saves the aggregate results to a JSON file
func (a *AggregateResults) SaveToJSON(filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(a); err != nil {
		return fmt.Errorf("failed to encode results to JSON: %w", err)
	}

	return nil
}
