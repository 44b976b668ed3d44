package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/lehigh-university-libraries/sketchguess/internal/providers"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
)

// OpenAI is a provider for OpenAI
type OpenAI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New returns a new OpenAI provider. Empty values fall back to OPENAI_BASE_URL
// and OPENAI_API_KEY.
func New(baseURL, apiKey string, client *http.Client) *OpenAI {
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAI{baseURL: baseURL, apiKey: apiKey, client: client}
}

// DefaultModelName returns OPENAI_MODEL or DefaultModel.
func DefaultModelName() string {
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		return model
	}
	return DefaultModel
}

func (o *OpenAI) Name() string { return "openai" }

// DescribeImage sends the prompt and the image as a data URL in one user message
func (o *OpenAI) DescribeImage(ctx context.Context, config providers.Config, image []byte) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	model := config.Model
	if model == "" {
		model = DefaultModelName()
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	requestBody, err := json.Marshal(map[string]interface{}{
		"model": model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": config.Prompt},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
		"temperature": config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}
