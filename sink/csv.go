package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/maruishi/recolte/extract"
)

// EncodeCSV writes records as CSV: one header row in the schema's column
// order, then one row per record. Invalid records are exported too; the
// aggregation layer is what excludes them.
func EncodeCSV(w io.Writer, schema extract.Schema, records []extract.NormalizedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(schema.Columns); err != nil {
		return fmt.Errorf("sink: csv header: %w", err)
	}
	row := make([]string, len(schema.Columns))
	for _, rec := range records {
		for i, col := range schema.Columns {
			row[i] = rec.Fields[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("sink: csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("sink: csv flush: %w", err)
	}
	return nil
}

// CSVWriter exports record sequences to timestamped files under Dir.
type CSVWriter struct {
	Dir string

	// now is swapped in tests for stable filenames.
	now func() time.Time
}

// NewCSVWriter creates a writer targeting dir, which is created on first
// use.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{Dir: dir, now: time.Now}
}

// Write exports one record type's extraction and returns the file path.
func (w *CSVWriter) Write(desc extract.Descriptor, records []extract.NormalizedRecord) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("sink: csv dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.csv", desc.Type, w.now().Format("20060102_150405"))
	path := filepath.Join(w.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("sink: csv create: %w", err)
	}
	if err := EncodeCSV(f, desc.Schema, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("sink: csv close: %w", err)
	}
	return path, nil
}
