package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/sketchguess/internal/providers"
)

const (
	DefaultHost  = "http://127.0.0.1:11434"
	DefaultModel = "gemma3:27b"
)

// Ollama is a provider for a local Ollama server
type Ollama struct {
	host   string
	client *http.Client
}

// New returns a new Ollama provider. An empty host falls back to OLLAMA_URL,
// then OLLAMA_HOST, then DefaultHost. A nil client uses http.DefaultClient.
func New(host string, client *http.Client) *Ollama {
	if host == "" {
		host = Host()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Ollama{
		host:   strings.TrimSuffix(host, "/"),
		client: client,
	}
}

// Host returns the configured Ollama address.
func Host() string {
	host := os.Getenv("OLLAMA_URL")
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		return DefaultHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host
}

// DefaultModelName returns OLLAMA_MODEL or DefaultModel.
func DefaultModelName() string {
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		return model
	}
	return DefaultModel
}

func (o *Ollama) Name() string { return "ollama" }

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// DescribeImage sends a single-turn chat with the image attached
func (o *Ollama) DescribeImage(ctx context.Context, config providers.Config, image []byte) (string, error) {
	model := config.Model
	if model == "" {
		model = DefaultModelName()
	}

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: config.Prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(image)},
		}},
		Stream: false,
	}
	if config.Temperature > 0 {
		body.Options = map[string]any{"temperature": config.Temperature}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama returned error: %s", response.Error)
	}
	if response.Message == nil {
		return "", fmt.Errorf("ollama response has no message")
	}

	return response.Message.Content, nil
}
