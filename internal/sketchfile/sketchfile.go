// Package sketchfile reads and writes stroke documents as JSON or YAML.
package sketchfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Document is a saved canvas: its on-screen size and strokes in draw order.
type Document struct {
	Width   int             `json:"width" yaml:"width"`
	Height  int             `json:"height" yaml:"height"`
	Strokes []canvas.Stroke `json:"strokes" yaml:"strokes"`
}

// FromState builds a document from a canvas snapshot.
func FromState(state canvas.State) *Document {
	return &Document{Width: state.Width, Height: state.Height, Strokes: state.Strokes}
}

// Session returns a canvas session holding the document's strokes.
func (d *Document) Session() *canvas.Session {
	s := canvas.NewSession()
	s.Resize(d.Width, d.Height)
	s.Restore(d.Strokes)
	return s
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported sketch format: %s (supported: .json, .yaml)", filepath.Ext(path))
	}
}

// Decode reads a document in the given format.
func Decode(r io.Reader, format string) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode sketch JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode sketch YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sketch format: %s", format)
	}
	return &doc, nil
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc *Document, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode sketch JSON: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode sketch YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported sketch format: %s", format)
	}
	return nil
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sketch: %w", err)
	}
	defer file.Close()
	return Decode(file, format)
}

// Save writes a document to disk.
func Save(path string, doc *Document) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sketch file: %w", err)
	}
	if err := Encode(file, doc, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
