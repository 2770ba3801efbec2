package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Columns recognized in recorded event logs.
const (
	ColumnRawJSON   = "Raw_JSON"
	ColumnTimestamp = "Timestamp"
)

var ErrMissingRawJSON = errors.New("csv has no " + ColumnRawJSON + " column")

// Row is one recorded event.
type Row struct {
	Line      int
	RawJSON   []byte
	Timestamp time.Time // Zero when the row had no parsable Timestamp column
}

// ReadCSV streams the rows of a recorded event log to fn. Column lookup is by
// header name, case-insensitively. Rows with an empty Raw_JSON cell are
// skipped. An error from fn stops the read and is returned.
func ReadCSV(r io.Reader, fn func(Row) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrMissingRawJSON
		}
		return fmt.Errorf("read csv header: %w", err)
	}

	rawIdx, tsIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case strings.EqualFold(name, ColumnRawJSON):
			rawIdx = i
		case strings.EqualFold(name, ColumnTimestamp):
			tsIdx = i
		}
	}
	if rawIdx < 0 {
		return ErrMissingRawJSON
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv line %d: %w", line, err)
		}
		if rawIdx >= len(rec) || strings.TrimSpace(rec[rawIdx]) == "" {
			continue
		}

		row := Row{Line: line, RawJSON: []byte(rec[rawIdx])}
		if tsIdx >= 0 && tsIdx < len(rec) {
			if ts, ok := ParseTime(rec[tsIdx]); ok {
				row.Timestamp = ts
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
