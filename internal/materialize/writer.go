// Package materialize turns dataset rows into CSV. A Dataset is a private
// temporary file that holds one extracted dataset between extraction and
// publication; a Writer is the same encoder over any io.Writer.
package materialize

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"

	"imisexport/internal/dataset"
)

// Stats summarizes what a Writer produced.
type Stats struct {
	Rows        int64
	Fingerprint uint64
}

// FingerprintHex renders the fingerprint the way it is logged.
func (s Stats) FingerprintHex() string { return fmt.Sprintf("%016x", s.Fingerprint) }

// Writer encodes rows as CSV and hashes every byte it writes.
type Writer struct {
	csv    *csv.Writer
	hash   *xxh3.Hasher
	width  int
	rows   int64
	record []string
}

// NewWriter writes header to w and returns a Writer for rows of the same
// width.
func NewWriter(w io.Writer, header []string) (*Writer, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("materialize: empty header")
	}
	h := xxh3.New()
	cw := csv.NewWriter(io.MultiWriter(w, h))
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("materialize: write header: %w", err)
	}
	return &Writer{csv: cw, hash: h, width: len(header), record: make([]string, 0, len(header))}, nil
}

// Append writes rows in order.
func (w *Writer) Append(rows ...dataset.Row) error {
	for _, r := range rows {
		if len(r) != w.width {
			return fmt.Errorf("materialize: row %d has %d values, header has %d", w.rows+1, len(r), w.width)
		}
		w.record = Record(w.record, r)
		if err := w.csv.Write(w.record); err != nil {
			return fmt.Errorf("materialize: write row %d: %w", w.rows+1, err)
		}
		w.rows++
	}
	return nil
}

// Flush flushes buffered output and reports the totals so far.
func (w *Writer) Flush() (Stats, error) {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return Stats{}, fmt.Errorf("materialize: flush: %w", err)
	}
	return Stats{Rows: w.rows, Fingerprint: w.hash.Sum64()}, nil
}
