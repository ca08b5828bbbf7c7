package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// csvHeader matches the trade log layout consumed by downstream analysis.
var csvHeader = []string{
	"timestamp", "action", "type", "ticker", "strike", "expiry",
	"price", "delta", "pnl", "cumulative_pnl", "notes",
}

// CSVWriter appends journal events to a CSV file, writing the header when
// the file is first created.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter creates a writer for path. The file and its directory are
// created lazily on first append.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Append writes one event row, creating the file with a header if needed.
func (w *CSVWriter) Append(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating journal dir: %w", err)
		}
	}

	writeHeader := false
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from config
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("writing journal header: %w", err)
		}
	}

	expiry := ""
	if !event.Expiry.IsZero() {
		expiry = event.Expiry.Format("2006-01-02")
	}
	row := []string{
		event.Timestamp.Format(time.RFC3339),
		event.Action,
		string(event.LegType),
		event.Symbol,
		strconv.FormatFloat(event.Strike, 'f', 2, 64),
		expiry,
		strconv.FormatFloat(event.Price, 'f', 2, 64),
		strconv.FormatFloat(event.Delta, 'f', 3, 64),
		strconv.FormatFloat(event.PnL, 'f', 2, 64),
		strconv.FormatFloat(event.CumulativePnL, 'f', 2, 64),
		event.Note,
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("writing journal row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
