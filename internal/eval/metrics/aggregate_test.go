package metrics

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleResults() []EvaluationResult {
	return []EvaluationResult{
		{ID: "1", Label: "ねこ", Answer: "ねこ", Match: CompareAnswer("ねこ", []string{"ねこ"}), ProcessingTime: 2 * time.Second},
		{ID: "2", Label: "いぬ", Answer: "犬の絵", Match: CompareAnswer("犬の絵", []string{"いぬ", "犬"}), ProcessingTime: 4 * time.Second},
		{ID: "3", Label: "太陽", Answer: "月", Match: CompareAnswer("月", []string{"太陽"}), ProcessingTime: 6 * time.Second},
		{ID: "4", Label: "魚", Error: "connection refused", ProcessingTime: 1 * time.Second},
	}
}

func TestAggregateEvaluationResults(t *testing.T) {
	agg := AggregateEvaluationResults(sampleResults(), "ollama", "gemma3:27b")

	if agg.TotalRecords != 4 || agg.SuccessCount != 3 || agg.FailureCount != 1 {
		t.Errorf("unexpected counts: total=%d success=%d failure=%d", agg.TotalRecords, agg.SuccessCount, agg.FailureCount)
	}
	if agg.CorrectCount != 2 {
		t.Errorf("CorrectCount = %d, want 2", agg.CorrectCount)
	}
	if agg.Accuracy != 0.5 {
		t.Errorf("Accuracy = %v, want 0.5", agg.Accuracy)
	}
	if agg.Methods["exact"] != 1 || agg.Methods["substring"] != 1 || agg.Methods["error"] != 1 {
		t.Errorf("unexpected method counts %v", agg.Methods)
	}
	if agg.TotalProcessingTime != 13*time.Second {
		t.Errorf("TotalProcessingTime = %s", agg.TotalProcessingTime)
	}
	if agg.MedianProcessingTime != 3*time.Second {
		t.Errorf("MedianProcessingTime = %s, want 3s", agg.MedianProcessingTime)
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := AggregateEvaluationResults(nil, "ollama", "m")
	if agg.Accuracy != 0 || agg.AverageScore != 0 || agg.AverageProcessingTime != 0 {
		t.Errorf("empty aggregate should be zero: %+v", agg)
	}
	var buf bytes.Buffer
	agg.PrintSummary(&buf)
	if !strings.Contains(buf.String(), "Accuracy: 0.00% (0/0)") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}

func TestCalculateAverage(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		expected float64
	}{
		{name: "empty", scores: nil, expected: 0},
		{name: "single", scores: []float64{0.5}, expected: 0.5},
		{name: "several", scores: []float64{1, 0.8, 0.3}, expected: 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateAverage(tt.scores); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("calculateAverage(%v) = %v, want %v", tt.scores, got, tt.expected)
			}
		})
	}
}

func TestSaveToJSON(t *testing.T) {
	agg := AggregateEvaluationResults(sampleResults(), "ollama", "gemma3:27b")
	path := filepath.Join(t.TempDir(), "results.json")
	if err := agg.SaveToJSON(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded AggregateResults
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Model != "gemma3:27b" || len(decoded.Results) != 4 {
		t.Errorf("unexpected decoded results %+v", decoded)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	AggregateEvaluationResults(sampleResults(), "ollama", "gemma3:27b").PrintSummary(&buf)
	out := buf.String()
	for _, want := range []string{"Provider: ollama", "Accuracy: 50.00% (2/4)", "substring"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
