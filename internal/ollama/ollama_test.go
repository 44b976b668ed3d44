package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/sketchguess/internal/providers"
)

func TestDescribeImageSendsSingleTurnChat(t *testing.T) {
	image := []byte("\x89PNG fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid request body: %v", err)
			return
		}
		if req.Model != "gemma3:27b" || req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "what is it?" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if len(req.Messages[0].Images) != 1 || req.Messages[0].Images[0] != base64.StdEncoding.EncodeToString(image) {
			t.Errorf("expected one inline base64 image, got %v", req.Messages[0].Images)
		}
		_, _ = w.Write([]byte(`{"model":"gemma3:27b","message":{"role":"assistant","content":"りんご"},"done":true}`))
	}))
	defer srv.Close()

	o := New(srv.URL+"/", srv.Client())
	got, err := o.DescribeImage(context.Background(), providers.Config{Model: "gemma3:27b", Prompt: "what is it?"}, image)
	if err != nil {
		t.Fatal(err)
	}
	if got != "りんご" {
		t.Errorf("got %q", got)
	}
}

func TestDescribeImageErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "non-200", status: http.StatusInternalServerError, body: "boom", wantErr: "non-200"},
		{name: "malformed json", status: http.StatusOK, body: "{", wantErr: "decode"},
		{name: "missing message", status: http.StatusOK, body: `{"done":true}`, wantErr: "no message"},
		{name: "model error", status: http.StatusOK, body: `{"error":"model not found"}`, wantErr: "model not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, srv.Client()).DescribeImage(context.Background(), providers.Config{Prompt: "x"}, []byte("img"))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestHostFromEnvironment(t *testing.T) {
	t.Setenv("OLLAMA_URL", "")
	t.Setenv("OLLAMA_HOST", "")
	if got := Host(); got != DefaultHost {
		t.Errorf("Host() = %q, want default", got)
	}

	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")
	if got := Host(); got != "http://10.0.0.5:11434" {
		t.Errorf("Host() = %q", got)
	}

	t.Setenv("OLLAMA_URL", "https://ollama.internal")
	if got := Host(); got != "https://ollama.internal" {
		t.Errorf("Host() = %q, OLLAMA_URL should win", got)
	}
}
