// Package analysis asks a vision model what a sketch depicts.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/sketchguess/internal/gemini"
	"github.com/lehigh-university-libraries/sketchguess/internal/ollama"
	"github.com/lehigh-university-libraries/sketchguess/internal/openai"
	"github.com/lehigh-university-libraries/sketchguess/internal/providers"
	"github.com/lehigh-university-libraries/sketchguess/internal/raster"
)

const (
	// Prompt asks for the depicted subject as a single word and nothing else.
	Prompt = "この手描きイラストには何が描かれていますか？単語だけを簡潔に出力してください。不必要な出力は絶対にしないでください。"

	// FailureMessage is shown for every failed analysis.
	FailureMessage = "画像分析中にエラーが発生しました。Ollamaが起動していることを確認してください。"
)

// Outcome is the single resolution of an analysis request.
type Outcome struct {
	Text     string        `json:"text"`
	Failed   bool          `json:"failed"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

func failure(err error, started time.Time) Outcome {
	return Outcome{Text: FailureMessage, Failed: true, Err: err, Duration: time.Since(started)}
}

// Analyzer sends raster snapshots to a provider with the fixed prompt.
type Analyzer struct {
	provider providers.Provider
	config   providers.Config
	// MaxSide downscales larger snapshots before upload. Zero disables it.
	MaxSide int
}

// New returns an Analyzer using provider and model. An empty model lets the
// provider pick its default.
func New(provider providers.Provider, model string) *Analyzer {
	return &Analyzer{
		provider: provider,
		config: providers.Config{
			Model:  model,
			Prompt: Prompt,
		},
	}
}

// ProviderName returns the backend name.
func (a *Analyzer) ProviderName() string { return a.provider.Name() }

// Model returns the configured model, which may be empty.
func (a *Analyzer) Model() string { return a.config.Model }

// Analyze sends one request and waits for it. It never returns an error:
// every failure resolves to an Outcome carrying FailureMessage.
func (a *Analyzer) Analyze(ctx context.Context, image []byte) Outcome {
	started := time.Now()
	if len(image) == 0 {
		return failure(fmt.Errorf("empty image"), started)
	}

	payload, err := a.prepare(image)
	if err != nil {
		slog.Error("Failed to prepare image for analysis", "err", err)
		return failure(err, started)
	}

	text, err := a.provider.DescribeImage(ctx, a.config, payload)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty response from %s", a.provider.Name())
	}
	if err != nil {
		slog.Error("Image analysis failed", "provider", a.provider.Name(), "model", a.config.Model, "err", err)
		return failure(err, started)
	}

	out := Outcome{Text: text, Duration: time.Since(started)}
	slog.Info("Image analyzed", "provider", a.provider.Name(), "model", a.config.Model, "duration", out.Duration)
	return out
}

func (a *Analyzer) prepare(image []byte) ([]byte, error) {
	if a.MaxSide <= 0 {
		return image, nil
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= a.MaxSide && cfg.Height <= a.MaxSide {
		return image, nil
	}
	img, err := png.Decode(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return raster.EncodePNG(raster.Fit(img, a.MaxSide))
}

// NewProvider builds a provider by name: "ollama", "openai" or "gemini".
func NewProvider(name string, client *http.Client) (providers.Provider, error) {
	switch strings.ToLower(name) {
	case "", "ollama":
		return ollama.New("", client), nil
	case "openai":
		return openai.New("", "", client), nil
	case "gemini":
		return gemini.New(""), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// DefaultModel returns the model a provider uses when none is configured.
func DefaultModel(name string) string {
	switch strings.ToLower(name) {
	case "openai":
		return openai.DefaultModelName()
	case "gemini":
		return gemini.DefaultModelName()
	default:
		return ollama.DefaultModelName()
	}
}

// Settings selects the analysis backend.
type Settings struct {
	// Provider defaults to ANALYSIS_PROVIDER, then "ollama".
	Provider string
	// Model defaults to the provider's default model.
	Model string
	// Timeout bounds each request at the transport. Zero means no timeout.
	Timeout time.Duration
	MaxSide int
}

// Build resolves settings against the environment and returns an Analyzer.
func Build(s Settings) (*Analyzer, error) {
	if s.Provider == "" {
		s.Provider = os.Getenv("ANALYSIS_PROVIDER")
	}
	if s.Provider == "" {
		s.Provider = "ollama"
	}
	if s.Model == "" {
		s.Model = DefaultModel(s.Provider)
	}

	provider, err := NewProvider(s.Provider, &http.Client{Timeout: s.Timeout})
	if err != nil {
		return nil, err
	}
	a := New(provider, s.Model)
	a.MaxSide = s.MaxSide
	slog.Debug("Analyzer configured", "provider", provider.Name(), "model", s.Model, "timeout", s.Timeout, "max_side", s.MaxSide)
	return a, nil
}
