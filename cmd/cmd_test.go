package cmd

import (
	"bytes"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
	"github.com/lehigh-university-libraries/sketchguess/internal/sketchfile"
)

func writeSketch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.yaml")
	doc := &sketchfile.Document{
		Width:  30,
		Height: 20,
		Strokes: []canvas.Stroke{
			{Tool: canvas.ToolPen, Size: 4, Color: "#000000", Points: []canvas.Point{{X: 2, Y: 2}, {X: 28, Y: 18}}},
		},
	}
	if err := sketchfile.Save(path, doc); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderCommand(t *testing.T) {
	sketch := writeSketch(t)
	dir := t.TempDir()

	tests := []struct {
		name   string
		output string
		check  func(t *testing.T, data []byte)
	}{
		{
			name:   "png",
			output: filepath.Join(dir, "cat.png"),
			check: func(t *testing.T, data []byte) {
				img, err := png.Decode(bytes.NewReader(data))
				if err != nil {
					t.Fatal(err)
				}
				if img.Bounds().Dx() != 60 || img.Bounds().Dy() != 40 {
					t.Errorf("bounds = %v, want 60x40", img.Bounds())
				}
			},
		},
		{
			name:   "pdf",
			output: filepath.Join(dir, "cat.pdf"),
			check: func(t *testing.T, data []byte) {
				if !bytes.HasPrefix(data, []byte("%PDF-")) {
					t.Error("output is not a pdf")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCmd()
			root.SetArgs([]string{"render", sketch, "-o", tt.output, "--scale", "2"})
			if err := root.Execute(); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(tt.output)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, data)
		})
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"render", writeSketch(t), "-o", filepath.Join(t.TempDir(), "cat.gif")})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Error("expected error for .gif output")
	}
}

func TestLoadImageFromSketch(t *testing.T) {
	data, err := loadImage(writeSketch(t), 1, "#ffffff")
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, a := img.At(29, 0).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("background pixel = %d,%d,%d,%d, want opaque white", r, g, b, a)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("parseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}
