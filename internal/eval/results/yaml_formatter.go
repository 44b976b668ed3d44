package results

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/lehigh-university-libraries/sketchguess/internal/eval/metrics"
	"gopkg.in/yaml.v3"
)

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Prompt      string  `yaml:"prompt"`
	DatasetPath string  `yaml:"datasetpath"`
	SampleSize  int     `yaml:"samplesize"`
	Scale       float64 `yaml:"scale"`
	Timestamp   string  `yaml:"timestamp"`
}

// EvalResult represents a single evaluation result
type EvalResult struct {
	Identifier       string  `yaml:"identifier"`
	Label            string  `yaml:"label"`
	ProviderResponse string  `yaml:"providerresponse"`
	Score            float64 `yaml:"score"`
	Method           string  `yaml:"method"`
	Correct          bool    `yaml:"correct"`
	DurationMS       int64   `yaml:"durationms"`
	Error            string  `yaml:"error,omitempty"`
}

// EvalSummary is the aggregate section of the eval YAML
type EvalSummary struct {
	Total    int     `yaml:"total"`
	Correct  int     `yaml:"correct"`
	Failed   int     `yaml:"failed"`
	Accuracy float64 `yaml:"accuracy"`
}

// EvalSpec represents the complete evaluation specification
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Summary EvalSummary  `yaml:"summary"`
	Results []EvalResult `yaml:"results"`
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewSpec converts aggregated results into the YAML report layout.
func NewSpec(config EvalConfig, agg *metrics.AggregateResults) *EvalSpec {
	if config.Timestamp == "" {
		config.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	spec := &EvalSpec{
		Config: config,
		Summary: EvalSummary{
			Total:    agg.TotalRecords,
			Correct:  agg.CorrectCount,
			Failed:   agg.FailureCount,
			Accuracy: agg.Accuracy,
		},
		Results: make([]EvalResult, 0, len(agg.Results)),
	}

	for _, r := range agg.Results {
		spec.Results = append(spec.Results, EvalResult{
			Identifier:       r.ID,
			Label:            r.Label,
			ProviderResponse: r.Answer,
			Score:            r.Match.Score,
			Method:           r.Match.Method,
			Correct:          r.Error == "" && r.Match.Correct(),
			DurationMS:       r.ProcessingTime.Milliseconds(),
			Error:            r.Error,
		})
	}
	return spec
}

// SaveToYAML writes spec to <dir>/<model>-<timestamp>.yaml and returns the path.
func SaveToYAML(dir string, spec *EvalSpec) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create evals directory: %w", err)
	}

	// Model names like "gemma3:27b" contain characters that are awkward in filenames.
	model := unsafeFilename.ReplaceAllString(spec.Config.Model, "_")
	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", model, spec.Config.Timestamp))

	data, err := yaml.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}

// LoadYAML reads a report written by SaveToYAML.
func LoadYAML(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return &spec, nil
}
