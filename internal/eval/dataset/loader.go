package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Loader handles loading of labeled sketch datasets
type Loader struct {
	datasetPath string
}

// NewLoader creates a new dataset loader
func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Load loads every record from a dataset file (JSONL or Parquet)
func (l *Loader) Load() ([]SketchRecord, error) {
	return l.load(0)
}

// LoadSample loads at most limit records
func (l *Loader) LoadSample(limit int) ([]SketchRecord, error) {
	return l.load(limit)
}

func (l *Loader) load(limit int) ([]SketchRecord, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	switch ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".jsonl", ".json":
		return l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

// jsonlRecord accepts strokes either as a JSON array or as a string holding one.
type jsonlRecord struct {
	SketchRecord
	Strokes json.RawMessage `json:"strokes,omitempty"`
}

func (j jsonlRecord) record() (SketchRecord, error) {
	rec := j.SketchRecord
	raw := bytes.TrimSpace(j.Strokes)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		rec.Strokes = ""
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &rec.Strokes); err != nil {
			return rec, err
		}
	default:
		rec.Strokes = string(raw)
	}
	return rec, nil
}

// loadJSONL loads records from a JSONL file
func (l *Loader) loadJSONL(limit int) ([]SketchRecord, error) {
	slog.Debug("Opening JSONL file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []SketchRecord
	scanner := bufio.NewScanner(file)

	// Stroke arrays and inline images make for long lines
	const maxCapacity = 10 * 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		if limit > 0 && len(records) >= limit {
			break
		}
		lineNum++
		line := scanner.Bytes()

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var raw jsonlRecord
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		record, err := raw.record()
		if err != nil {
			return nil, fmt.Errorf("failed to parse strokes at line %d: %w", lineNum, err)
		}
		if record.ID == "" {
			record.ID = fmt.Sprintf("line-%d", lineNum)
		}

		records = append(records, record)

		if lineNum%1000 == 0 {
			slog.Debug("Reading JSONL", "lines_read", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Finished reading JSONL file", "total_records", len(records), "total_lines", lineNum)

	return records, nil
}

// loadParquet loads records from a Parquet file
func (l *Loader) loadParquet(limit int) ([]SketchRecord, error) {
	slog.Debug("Opening Parquet file", "path", l.datasetPath, "limit", limit)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened successfully", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[SketchRecord](pf)
	defer reader.Close()

	var records []SketchRecord
	rows := make([]SketchRecord, 128)

	for limit <= 0 || len(records) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit > 0 && n > limit-len(records) {
				n = limit - len(records)
			}
			for i := range rows[:n] {
				if rows[i].ID == "" {
					rows[i].ID = fmt.Sprintf("row-%d", len(records)+i+1)
				}
			}
			records = append(records, rows[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to read parquet rows: %w", err)
			}
			break
		}
	}

	slog.Debug("Finished reading Parquet file", "total_records", len(records))

	return records, nil
}
