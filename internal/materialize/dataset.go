package materialize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"imisexport/internal/dataset"
)

// Dataset is one materialized dataset on disk. The file is created with
// mode 0600 and removed by Close.
type Dataset struct {
	header []string
	file   *os.File
	w      *Writer
	stats  Stats
	done   bool
}

// New creates a temp file under dir (os.TempDir when empty) holding header.
func New(dir, pattern string, header []string) (*Dataset, error) {
	f, err := os.CreateTemp(dir, pattern+"-*.csv")
	if err != nil {
		return nil, fmt.Errorf("materialize: create temp: %w", err)
	}
	w, err := NewWriter(f, header)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &Dataset{header: append([]string(nil), header...), file: f, w: w}, nil
}

// Path is the temp file's location.
func (d *Dataset) Path() string { return d.file.Name() }

// Header returns the column names.
func (d *Dataset) Header() []string { return d.header }

// Append writes rows in arrival order.
func (d *Dataset) Append(rows ...dataset.Row) error {
	if d.done {
		return errors.New("materialize: append after finalize")
	}
	return d.w.Append(rows...)
}

// Finalize flushes the file and freezes it for reading.
func (d *Dataset) Finalize() (Stats, error) {
	if d.done {
		return d.stats, nil
	}
	st, err := d.w.Flush()
	if err != nil {
		return Stats{}, err
	}
	if err := d.file.Sync(); err != nil {
		return Stats{}, fmt.Errorf("materialize: sync: %w", err)
	}
	d.stats, d.done = st, true
	return st, nil
}

// Stats returns what Finalize reported.
func (d *Dataset) Stats() Stats { return d.stats }

// Scan streams every data record, header excluded, to fn. Each call opens
// its own handle so a dataset can be scanned more than once.
func (d *Dataset) Scan(fn func(record []string) error) error {
	if !d.done {
		return errors.New("materialize: scan before finalize")
	}
	f, err := os.Open(d.file.Name())
	if err != nil {
		return fmt.Errorf("materialize: open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(d.header)
	r.ReuseRecord = true
	if _, err := r.Read(); err != nil {
		return fmt.Errorf("materialize: read header: %w", err)
	}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("materialize: read: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Close removes the temp file.
func (d *Dataset) Close() error {
	cerr := d.file.Close()
	if err := os.Remove(d.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("materialize: remove: %w", err)
	}
	if cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		return cerr
	}
	return nil
}
