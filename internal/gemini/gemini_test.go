package gemini

import (
	"context"
	"testing"

	"github.com/lehigh-university-libraries/sketchguess/internal/providers"
)

func TestDescribeImageRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New("").DescribeImage(context.Background(), providers.Config{Prompt: "x"}, []byte("png"))
	if err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestDefaultModelName(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "")
	if got := DefaultModelName(); got != DefaultModel {
		t.Errorf("DefaultModelName() = %q, want %q", got, DefaultModel)
	}
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	if got := DefaultModelName(); got != "gemini-2.0-flash" {
		t.Errorf("DefaultModelName() = %q, want env override", got)
	}
}
