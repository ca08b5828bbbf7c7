package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleEvent(action string) Event {
	return Event{
		Timestamp:     time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC),
		Action:        action,
		LegType:       LegShort,
		Symbol:        "SPY",
		Strike:        520,
		Expiry:        time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC),
		Price:         1.80,
		Delta:         0.301,
		PnL:           0,
		CumulativePnL: 180,
		Note:          "Sold short call",
	}
}

func TestCSVAppendCreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trades.csv")
	w := NewCSVWriter(path)

	if err := w.Append(sampleEvent("SELL")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(sampleEvent("BUY_TO_CLOSE")); err != nil {
		t.Fatalf("append: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 events", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][10] != "notes" {
		t.Fatalf("unexpected header: %v", rows[0])
	}

	row := rows[1]
	if row[1] != "SELL" || row[2] != "SHORT" || row[3] != "SPY" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[4] != "520.00" || row[5] != "2024-02-16" || row[7] != "0.301" {
		t.Fatalf("unexpected formatting: %v", row)
	}
	if rows[2][1] != "BUY_TO_CLOSE" {
		t.Fatalf("second event lost: %v", rows[2])
	}
}

func TestCSVHeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	// Two writer instances against the same file, like two process runs.
	if err := NewCSVWriter(path).Append(sampleEvent("SELL")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := NewCSVWriter(path).Append(sampleEvent("SELL")); err != nil {
		t.Fatalf("append: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want one header + 2 events", len(rows))
	}
	if rows[1][0] == "timestamp" || rows[2][0] == "timestamp" {
		t.Fatal("header repeated")
	}
}
