// Package report writes the misused sender-ID CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edwin001-tech/misused-senders/internal/domain"
)

const DateLayout = "2006-01-02 15:04:05"

var Header = []string{"Date", "sender_id", "message", "classifiedType", "expectedType"}

// FileName is the attachment name for a report generated at now.
func FileName(now time.Time, dated bool) string {
	if dated {
		return "misused_senders_" + now.Format("2006-01-02") + ".csv"
	}
	return "misused_senders.csv"
}

// WriteCSV writes rows to path. An empty rows still produces the header.
func WriteCSV(path string, rows []domain.Mismatch) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: mkdir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("report: close: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, m := range rows {
		rec := []string{m.Date.Format(DateLayout), m.SenderID, m.Message, m.ClassifiedType, m.ExpectedType}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	return nil
}
