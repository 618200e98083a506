package export

import (
	"fmt"
	"time"
)

// Table is a fetched result that patches may rewrite in place.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Map replaces every value of col with fn(value). A column that was not
// requested is left alone.
func (t *Table) Map(col string, fn func(any) (any, error)) error {
	i := t.Index(col)
	if i < 0 {
		return nil
	}
	for r, row := range t.Rows {
		v, err := fn(row[i])
		if err != nil {
			return fmt.Errorf("column %s row %d: %w", col, r, err)
		}
		row[i] = v
	}
	return nil
}

// Patch post-processes a table before it is written.
type Patch func(*Table) error

// FormatDate renders time values of col with layout. NULLs stay empty.
func FormatDate(col, layout string) Patch {
	return func(t *Table) error {
		return t.Map(col, func(v any) (any, error) {
			switch d := v.(type) {
			case nil:
				return nil, nil
			case time.Time:
				return d.Format(layout), nil
			case string:
				return d, nil
			}
			return nil, fmt.Errorf("%T is not a date", v)
		})
	}
}

// Label replaces codes of col with their labels.
func Label[K comparable](col string, label func(K) string) Patch {
	return func(t *Table) error {
		return t.Map(col, func(v any) (any, error) {
			if v == nil {
				return nil, nil
			}
			k, ok := coerce[K](v)
			if !ok {
				return nil, fmt.Errorf("%T cannot be labelled", v)
			}
			return label(k), nil
		})
	}
}

// coerce bridges driver types to the key type of a label table: SQL
// integers arrive as int64, CHAR columns as string or []byte.
func coerce[K comparable](v any) (K, bool) {
	var zero K
	switch any(zero).(type) {
	case int:
		if n, ok := v.(int64); ok {
			return any(int(n)).(K), true
		}
	case string:
		if b, ok := v.([]byte); ok {
			return any(string(b)).(K), true
		}
	}
	k, ok := v.(K)
	return k, ok
}
