package sketchfile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
)

func TestSaveAndLoad(t *testing.T) {
	doc := &Document{
		Width:  320,
		Height: 240,
		Strokes: []canvas.Stroke{
			{ID: "a", Tool: canvas.ToolPen, Size: 5, Color: "#000000", Points: []canvas.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}},
			{ID: "b", Tool: canvas.ToolEraser, Size: 20, Points: []canvas.Point{{X: 2, Y: 3}}},
		},
	}

	for _, name := range []string{"sketch.json", "sketch.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Save(path, doc); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.Width != 320 || got.Height != 240 || len(got.Strokes) != 2 {
				t.Fatalf("unexpected document %+v", got)
			}
			if got.Strokes[1].Tool != canvas.ToolEraser || got.Strokes[0].Points[1] != (canvas.Point{X: 3, Y: 4}) {
				t.Errorf("strokes not preserved: %+v", got.Strokes)
			}
		})
	}
}

func TestDecodeYAMLWithoutIDs(t *testing.T) {
	src := `width: 100
height: 80
strokes:
  - tool: pen
    size: 7
    color: "#df4b26"
    points:
      - {x: 10, y: 10}
      - {x: 20, y: 20}
`
	doc, err := Decode(strings.NewReader(src), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	s := doc.Session()
	strokes := s.Strokes()
	if len(strokes) != 1 || strokes[0].ID == "" || strokes[0].Size != 7 {
		t.Errorf("unexpected strokes %+v", strokes)
	}
	if snap := s.Snapshot(); snap.Width != 100 || snap.Height != 80 {
		t.Errorf("unexpected size %dx%d", snap.Width, snap.Height)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "a.json", want: FormatJSON},
		{path: "a.YML", want: FormatYAML},
		{path: "a.yaml", want: FormatYAML},
		{path: "a.png", wantErr: true},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v", tt.path, got, err)
		}
	}
}
