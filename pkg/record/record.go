package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/itohio/pmscollect/pkg/collect"
)

// FileName returns the name a run started at t is saved under,
// e.g. 20190612-1403.csv.
func FileName(t time.Time) string {
	return t.Format("20060102-1504") + ".csv"
}

// WriteCSV writes points as CSV with a header row. The value column is
// labelled with units when set.
func WriteCSV(w io.Writer, units string, points []collect.Point) error {
	valueCol := "value"
	if units != "" {
		valueCol = fmt.Sprintf("value[%s]", units)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "seconds", valueCol}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range points {
		row := []string{
			strconv.Itoa(p.Index),
			strconv.FormatFloat(p.Seconds, 'f', 3, 64),
			strconv.FormatFloat(p.Value, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", p.Index, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Save writes the points to FileName(t) inside dir, creating dir if needed,
// and returns the file path.
func Save(dir string, t time.Time, units string, points []collect.Point) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(t))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteCSV(f, units, points); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}
