package providers

import (
	"context"
)

// Config represents the configuration for a vision model request
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Provider describes an image with a vision-capable model. The image is sent
// inline with the request, never by URL.
type Provider interface {
	Name() string
	DescribeImage(ctx context.Context, config Config, image []byte) (string, error)
}
